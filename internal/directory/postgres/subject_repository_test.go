package postgres_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/types"
	"accessctl/internal/directory/domain"
	"accessctl/internal/directory/postgres"
)

var testPool *pgxpool.Pool

// TestMain boots a throwaway Postgres container and applies the repo's
// migration files, the same shape as the rules store integration suite.
func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not construct docker pool: %s", err)
	}

	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("could not connect to docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "17-alpine",
		Env: []string{
			"POSTGRES_USER=accessctl",
			"POSTGRES_PASSWORD=accessctl",
			"POSTGRES_DB=accessctl",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("could not start resource: %s", err)
	}
	resource.Expire(120)

	hostPort := resource.GetHostPort("5432/tcp")
	databaseURL := fmt.Sprintf("postgres://accessctl:accessctl@%s/accessctl?sslmode=disable", hostPort)

	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var poolErr error
		testPool, poolErr = pgxpool.New(ctx, databaseURL)
		if poolErr != nil {
			return poolErr
		}
		return testPool.Ping(ctx)
	}); err != nil {
		log.Fatalf("could not connect to database: %s", err)
	}

	mig, err := migrate.New("file://../../../migrations", databaseURL)
	if err != nil {
		log.Fatalf("could not create migrator: %s", err)
	}
	if err := mig.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatalf("could not run migrations: %s", err)
	}
	mig.Close()

	code := m.Run()

	testPool.Close()
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("could not purge resource: %s", err)
	}
	os.Exit(code)
}

type SubjectRepositorySuite struct {
	suite.Suite
	ctx  context.Context
	repo *postgres.SubjectRepository
	org  types.OrgID
	now  time.Time
}

func TestSubjectRepositorySuite(t *testing.T) {
	suite.Run(t, new(SubjectRepositorySuite))
}

func (s *SubjectRepositorySuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = postgres.NewSubjectRepository(testPool)
	s.org = types.OrgID("org-subjects")
	s.now = time.Now().UTC()

	_, err := testPool.Exec(s.ctx, `
		TRUNCATE access_control.group_members, access_control.groups,
			access_control.preauthorized_visitors, access_control.residents,
			access_control.organizations CASCADE`)
	s.Require().NoError(err)

	_, err = testPool.Exec(s.ctx, `
		INSERT INTO access_control.organizations (id, name, state, timezone_id, default_decision, created_at, updated_at)
		VALUES ($1, 'Subjects Org', 'ACTIVE', 'UTC', 'ALLOW', $2, $2)`,
		s.org.String(), s.now,
	)
	s.Require().NoError(err)
}

func (s *SubjectRepositorySuite) newResident(id, docNumber string) *domain.Resident {
	return &domain.Resident{
		ID: types.SubjectID(id), OrgID: s.org,
		DocumentKind: "CC", DocumentNumber: docNumber,
		State: domain.SubjectStateActive, CreatedAt: s.now, UpdatedAt: s.now,
	}
}

func (s *SubjectRepositorySuite) TestResidentRoundTrip() {
	name := "Ana"
	res := s.newResident("res-1", "1001")
	res.Contact.Name = &name
	s.Require().NoError(s.repo.SaveResident(s.ctx, res))

	got, err := s.repo.FindResident(s.ctx, s.org, types.SubjectID("res-1"))
	s.Require().NoError(err)
	s.Equal("1001", got.DocumentNumber)
	s.Require().NotNil(got.Contact.Name)
	s.Equal(name, *got.Contact.Name)
	s.Equal(domain.SubjectStateActive, got.State)
}

func (s *SubjectRepositorySuite) TestResidentDocumentUniquePerOrg() {
	s.Require().NoError(s.repo.SaveResident(s.ctx, s.newResident("res-1", "1001")))
	err := s.repo.SaveResident(s.ctx, s.newResident("res-2", "1001"))
	s.Error(err, "same document kind+number in one org must violate the unique index")
}

func (s *SubjectRepositorySuite) TestCrossTenantLookupIsNotFound() {
	s.Require().NoError(s.repo.SaveResident(s.ctx, s.newResident("res-1", "1001")))
	_, err := s.repo.FindResident(s.ctx, types.OrgID("some-other-org"), types.SubjectID("res-1"))
	s.ErrorIs(err, domain.ErrSubjectNotFound)
}

func (s *SubjectRepositorySuite) TestGroupMembership() {
	group := &domain.Group{
		ID: types.SubjectID("grp-1"), OrgID: s.org, Name: "Tower A",
		Kind: domain.GroupKindResidents, State: domain.SubjectStateActive,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.repo.SaveGroup(s.ctx, group))

	_, err := testPool.Exec(s.ctx, `
		INSERT INTO access_control.group_members (group_id, org_id, member_id, created_at)
		VALUES ($1, $2, $3, $4)`,
		"grp-1", s.org.String(), "res-1", s.now,
	)
	s.Require().NoError(err)

	member, err := s.repo.IsGroupMember(s.ctx, s.org, types.SubjectID("grp-1"), types.SubjectID("res-1"))
	s.Require().NoError(err)
	s.True(member)

	member, err = s.repo.IsGroupMember(s.ctx, types.OrgID("some-other-org"), types.SubjectID("grp-1"), types.SubjectID("res-1"))
	s.Require().NoError(err)
	s.False(member, "membership never leaks across tenants")
}

func (s *SubjectRepositorySuite) TestGroupNameUniqueCaseInsensitive() {
	first := &domain.Group{
		ID: types.SubjectID("grp-1"), OrgID: s.org, Name: "Tower A",
		Kind: domain.GroupKindResidents, State: domain.SubjectStateActive,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Require().NoError(s.repo.SaveGroup(s.ctx, first))

	shout := &domain.Group{
		ID: types.SubjectID("grp-2"), OrgID: s.org, Name: "TOWER A",
		Kind: domain.GroupKindResidents, State: domain.SubjectStateActive,
		CreatedAt: s.now, UpdatedAt: s.now,
	}
	s.Error(s.repo.SaveGroup(s.ctx, shout))
}
