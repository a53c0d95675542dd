package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"accessctl/internal/common/types"
	"accessctl/internal/directory/domain"
)

type DeviceSuite struct {
	suite.Suite
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) TestNewDeviceStartsActive() {
	d := domain.NewDevice(types.DeviceID("device-1"), types.OrgID("org-1"), types.AreaID("area-1"), "front gate", nil, nil)
	s.True(d.Active())
}

func (s *DeviceSuite) TestSnapshotCarriesOnlyEngineFields() {
	d := domain.NewDevice(types.DeviceID("device-1"), types.OrgID("org-1"), types.AreaID("area-1"), "front gate", nil, nil)
	snap := d.Snapshot()
	s.Equal(d.ID(), snap.ID)
	s.Equal(d.OrgID(), snap.OrgID)
	s.Equal(d.AreaID(), snap.AreaID)
	s.Equal(d.Active(), snap.Active)
}

func (s *DeviceSuite) TestReconstructPreservesInactiveState() {
	now := time.Now().UTC()
	d := domain.ReconstructDevice(types.DeviceID("device-1"), types.OrgID("org-1"), types.AreaID("area-1"), "front gate", nil, nil, false, now, now)
	s.False(d.Active())
	s.False(d.Snapshot().Active)
}
