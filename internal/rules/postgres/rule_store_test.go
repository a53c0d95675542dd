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
	directory "accessctl/internal/directory/domain"
	"accessctl/internal/rules/domain"
	"accessctl/internal/rules/postgres"
)

var testPool *pgxpool.Pool

// TestMain boots a throwaway Postgres container and applies the repo's
// golang-migrate migration files before the suites in this package run, so
// the queries here are exercised against the real schema rather than a
// second hand-maintained copy of the DDL.
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

	if err := runMigrations(context.Background(), testPool, databaseURL); err != nil {
		log.Fatalf("could not run migrations: %s", err)
	}

	code := m.Run()

	testPool.Close()
	if err := pool.Purge(resource); err != nil {
		log.Fatalf("could not purge resource: %s", err)
	}
	os.Exit(code)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, databaseURL string) error {
	m, err := migrate.New("file://../../../migrations", databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func truncateTables(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		TRUNCATE access_control.rules, access_control.areas, access_control.organizations CASCADE
	`)
	return err
}

func getTestPool() *pgxpool.Pool { return testPool }

func seedOrgAndArea(ctx context.Context, pool *pgxpool.Pool, orgID types.OrgID, areaID types.AreaID) error {
	now := time.Now().UTC()
	if _, err := pool.Exec(ctx, `
		INSERT INTO access_control.organizations (id, name, state, timezone_id, default_decision, created_at, updated_at)
		VALUES ($1, $2, 'ACTIVE', 'UTC', 'DENY', $3, $3)`,
		orgID.String(), "org-"+orgID.String(), now,
	); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `
		INSERT INTO access_control.areas (id, org_id, name, timezone_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULL, $4, $4)`,
		areaID.String(), orgID.String(), "area-"+areaID.String(), now,
	)
	return err
}

// RuleStoreSuite exercises RuleStore against a real Postgres instance.
//
// Justification: NULL-as-wildcard duplicate detection relies on
// IS NOT DISTINCT FROM semantics and index-backed ordering, which a
// hand-written fake cannot stand in for.
type RuleStoreSuite struct {
	suite.Suite
	ctx    context.Context
	store  *postgres.RuleStore
	orgID  types.OrgID
	areaID types.AreaID
}

func TestRuleStoreSuite(t *testing.T) {
	suite.Run(t, new(RuleStoreSuite))
}

func (s *RuleStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(truncateTables(s.ctx, getTestPool()))
	s.store = postgres.NewRuleStore(getTestPool())
	s.orgID = types.OrgID("org-1")
	s.areaID = types.AreaID("area-1")
	s.Require().NoError(seedOrgAndArea(s.ctx, getTestPool(), s.orgID, s.areaID))
}

func (s *RuleStoreSuite) newRule(priority int) *domain.Rule {
	return domain.NewRule(
		types.RuleID(fmt.Sprintf("rule-%d-%d", priority, time.Now().UnixNano())),
		s.orgID, s.areaID, directory.SubjectTypeResident,
		nil, nil, nil, domain.ActionAllow, nil, nil, priority, nil, time.Now().UTC(),
	)
}

func (s *RuleStoreSuite) TestSaveAndFindByID() {
	rule := s.newRule(10)
	s.Require().NoError(s.store.Save(s.ctx, rule))

	found, err := s.store.FindByID(s.ctx, s.orgID, rule.ID())
	s.Require().NoError(err)
	s.Equal(rule.ID(), found.ID())
	s.Equal(domain.ActionAllow, found.Action())
}

func (s *RuleStoreSuite) TestFindByIDMissingReturnsNotFound() {
	_, err := s.store.FindByID(s.ctx, s.orgID, types.RuleID("nope"))
	s.ErrorIs(err, domain.ErrRuleNotFound)
}

func (s *RuleStoreSuite) TestFindActiveRulesBaseOrdersByPriorityThenRecency() {
	low := s.newRule(1)
	high := s.newRule(10)
	s.Require().NoError(s.store.Save(s.ctx, low))
	s.Require().NoError(s.store.Save(s.ctx, high))

	rules, err := s.store.FindActiveRulesBase(s.ctx, s.orgID, s.areaID, directory.SubjectTypeResident)
	s.Require().NoError(err)
	s.Require().Len(rules, 2)
	s.Equal(high.ID(), rules[0].ID(), "higher priority rule must sort first")
}

func (s *RuleStoreSuite) TestExistsDuplicateMatchesOnWildcardTuple() {
	rule := s.newRule(5)
	s.Require().NoError(s.store.Save(s.ctx, rule))

	dup := domain.NewRule(
		types.RuleID("rule-dup"), s.orgID, s.areaID, directory.SubjectTypeResident,
		nil, nil, nil, domain.ActionAllow, nil, nil, 5, nil, time.Now().UTC(),
	)
	exists, err := s.store.ExistsDuplicate(s.ctx, dup, nil)
	s.Require().NoError(err)
	s.True(exists, "two NULL-matcher rules with identical action/windows must collide")

	excl := dup.ID()
	exists, err = s.store.ExistsDuplicate(s.ctx, dup, &excl)
	s.Require().NoError(err)
	s.True(exists, "excluding the duplicate's own id is irrelevant here since dup has a different id")
}

func (s *RuleStoreSuite) TestInactiveRuleExcludedFromActiveLookup() {
	rule := s.newRule(5)
	s.Require().NoError(s.store.Save(s.ctx, rule))
	rule.Inactivate(time.Now().UTC())
	s.Require().NoError(s.store.Save(s.ctx, rule))

	rules, err := s.store.FindActiveRulesBase(s.ctx, s.orgID, s.areaID, directory.SubjectTypeResident)
	s.Require().NoError(err)
	s.Empty(rules)
}
