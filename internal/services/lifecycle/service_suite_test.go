package lifecycle

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BearBump/RepairBox/internal/broker/messages"
	cachemocks "github.com/BearBump/RepairBox/internal/cache/mocks"
	"github.com/BearBump/RepairBox/internal/models"
	"github.com/BearBump/RepairBox/internal/trackingcode"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	lifecyclemocks "github.com/BearBump/RepairBox/internal/services/lifecycle/mocks"
)

const topic = "repair.status_changed"

var fixedNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

type ServiceSuite struct {
	suite.Suite

	repo  *lifecyclemocks.MockRepository
	pub   *lifecyclemocks.MockPublisher
	cache *cachemocks.MockBytesCache
	svc   *Service
}

// codes: каждые 6 байт дают один код; байт b превращается в Alphabet[b%32].
func (s *ServiceSuite) newService(random []byte, attempts int) *Service {
	svc := New(s.repo, trackingcode.New("FAG", bytes.NewReader(random)), s.pub, s.cache, Config{
		StatusChangedTopic: topic,
		MaxCodeAttempts:    attempts,
		TrackingTTL:        10 * time.Minute,
	})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &lifecyclemocks.MockRepository{}
	s.pub = &lifecyclemocks.MockPublisher{}
	s.cache = &cachemocks.MockBytesCache{}
	s.svc = s.newService(bytes.Repeat([]byte{0}, 60), 10)
}

func (s *ServiceSuite) TearDownTest() {
	s.repo.AssertExpectations(s.T())
	s.pub.AssertExpectations(s.T())
	s.cache.AssertExpectations(s.T())
}

func validIntake() IntakeInput {
	return IntakeInput{
		CustomerName:  " Mario Rossi ",
		CustomerPhone: "333 111 2233",
		Plate:         "ab 123-cd",
		Kind:          "accident",
		Description:   "paraurti anteriore",
	}
}

func intPtr(v int) *int { return &v }

func detailAt(status models.Status, version int64) *models.RepairDetail {
	return &models.RepairDetail{
		Repair: &models.Repair{
			ID:           "r-1",
			TrackingCode: "FAG-AAAAAA",
			CustomerID:   "c-1",
			VehicleID:    "v-1",
			Kind:         models.RepairKindAccident,
			Status:       status,
			Version:      version,
		},
		Customer: &models.Customer{ID: "c-1", Name: "Mario Rossi", Phone: "3331112233"},
		Vehicle:  &models.Vehicle{ID: "v-1", Plate: "AB123CD"},
	}
}

func (s *ServiceSuite) TestCreateIntake_NormalizesAndCreates() {
	s.repo.On("TrackingCodeExists", mock.Anything, "FAG-AAAAAA").Return(false, nil).Once()
	s.repo.On("CreateRepair", mock.Anything, mock.MatchedBy(func(in models.RepairCreateInput) bool {
		return in.Customer.Name == "Mario Rossi" &&
			in.Customer.Phone == "3331112233" &&
			in.Vehicle.Plate == "AB123CD" &&
			in.Kind == models.RepairKindAccident &&
			in.Description != nil && *in.Description == "paraurti anteriore" &&
			in.Customer.Email == nil
	}), "FAG-AAAAAA").
		Return(&models.Snapshot{RepairDetail: *detailAt(models.StatusIntake, 1)}, nil).
		Once()

	snap, err := s.svc.CreateIntake(context.Background(), validIntake())
	s.Require().NoError(err)
	s.Require().Equal("FAG-AAAAAA", snap.Repair.TrackingCode)
}

func (s *ServiceSuite) TestCreateIntake_RetriesOnCollision() {
	random := append(bytes.Repeat([]byte{0}, 6), bytes.Repeat([]byte{1}, 12)...)
	svc := s.newService(random, 10)

	s.repo.On("TrackingCodeExists", mock.Anything, "FAG-AAAAAA").Return(true, nil).Once()
	s.repo.On("TrackingCodeExists", mock.Anything, "FAG-BBBBBB").Return(false, nil).Twice()
	// второй код заняли между проверкой и вставкой, третий проходит
	s.repo.On("CreateRepair", mock.Anything, mock.Anything, "FAG-BBBBBB").
		Return(nil, models.ErrTrackingCodeTaken).Once()
	s.repo.On("CreateRepair", mock.Anything, mock.Anything, "FAG-BBBBBB").
		Return(&models.Snapshot{RepairDetail: *detailAt(models.StatusIntake, 1)}, nil).Once()

	_, err := svc.CreateIntake(context.Background(), validIntake())
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestCreateIntake_Exhausted() {
	svc := s.newService(bytes.Repeat([]byte{0}, 60), 3)
	s.repo.On("TrackingCodeExists", mock.Anything, "FAG-AAAAAA").Return(true, nil).Times(3)

	_, err := svc.CreateIntake(context.Background(), validIntake())
	s.Require().ErrorIs(err, models.ErrTrackingCodeExhausted)
	s.repo.AssertNotCalled(s.T(), "CreateRepair", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCreateIntake_ValidationBeforeAnyWrite() {
	cases := map[string]func(in *IntakeInput){
		"no name":     func(in *IntakeInput) { in.CustomerName = "  " },
		"no phone":    func(in *IntakeInput) { in.CustomerPhone = "" },
		"short phone": func(in *IntakeInput) { in.CustomerPhone = "123" },
		"no plate":    func(in *IntakeInput) { in.Plate = " - " },
		"bad kind":    func(in *IntakeInput) { in.Kind = "TUNING" },
		"bad email":   func(in *IntakeInput) { in.CustomerEmail = "not-an-email" },
		"bad year":    func(in *IntakeInput) { in.Year = intPtr(1800) },
	}
	for name, mutate := range cases {
		in := validIntake()
		mutate(&in)
		_, err := s.svc.CreateIntake(context.Background(), in)
		s.Require().ErrorIs(err, models.ErrValidation, name)
	}
}

func (s *ServiceSuite) TestTransition_ForwardAppliesAndEmits() {
	cur := detailAt(models.StatusAccepted, 2)
	expected := fixedNow.Add(72 * time.Hour)
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(cur, nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, models.TransitionUpdate{
		RepairID:             "r-1",
		ExpectedVersion:      2,
		Now:                  fixedNow,
		Status:               models.StatusInProgress,
		Kind:                 models.EntryKindTransition,
		ExpectedCompletionAt: &expected,
	}).Return(
		&models.Repair{ID: "r-1", TrackingCode: "FAG-AAAAAA", Status: models.StatusInProgress, Version: 3},
		&models.LedgerEntry{RepairID: "r-1", Seq: 3, Status: models.StatusInProgress, OccurredAt: fixedNow},
		nil,
	).Once()
	s.cache.On("Delete", mock.Anything, "repair:track:FAG-AAAAAA").Return(nil).Once()
	s.pub.On("Publish", mock.Anything, topic, []byte("r-1"), mock.MatchedBy(func(b []byte) bool {
		var msg messages.StatusChanged
		if json.Unmarshal(b, &msg) != nil {
			return false
		}
		return msg.PreviousStatus == "ACCEPTED" &&
			msg.NewStatus == "IN_PROGRESS" &&
			msg.TrackingCode == "FAG-AAAAAA" &&
			msg.CustomerContact.Phone == "3331112233" &&
			msg.VehiclePlate == "AB123CD" &&
			!msg.Correction
	})).Return(nil).Once()

	res, err := s.svc.Transition(context.Background(), TransitionRequest{
		RepairID:             "r-1",
		Status:               "in_progress",
		ExpectedCompletionAt: &expected,
	})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeApplied, res.Outcome)
	s.Require().Equal(models.StatusAccepted, res.Previous)
	s.Require().Equal(models.StatusInProgress, res.Repair.Status)
}

func (s *ServiceSuite) TestTransition_DeliveredSetsActualCompletion() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusReady, 6), nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(upd models.TransitionUpdate) bool {
		return upd.Status == models.StatusDelivered && upd.SetActualCompletion && !upd.ClearActualCompletion
	})).Return(
		&models.Repair{ID: "r-1", TrackingCode: "FAG-AAAAAA", Status: models.StatusDelivered, Version: 7, ActualCompletionAt: &fixedNow},
		&models.LedgerEntry{Seq: 7, Status: models.StatusDelivered, OccurredAt: fixedNow},
		nil,
	).Once()
	s.cache.On("Delete", mock.Anything, mock.Anything).Return(nil).Once()
	s.pub.On("Publish", mock.Anything, topic, mock.Anything, mock.Anything).Return(nil).Once()

	res, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "DELIVERED"})
	s.Require().NoError(err)
	s.Require().NotNil(res.Repair.ActualCompletionAt)
}

func (s *ServiceSuite) TestTransition_PublishFailureIsSwallowed() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusIntake, 1), nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, mock.Anything).Return(
		&models.Repair{ID: "r-1", TrackingCode: "FAG-AAAAAA", Status: models.StatusAccepted, Version: 2},
		&models.LedgerEntry{Seq: 2, Status: models.StatusAccepted},
		nil,
	).Once()
	s.cache.On("Delete", mock.Anything, mock.Anything).Return(errors.New("redis down")).Once()
	s.pub.On("Publish", mock.Anything, topic, mock.Anything, mock.Anything).Return(errors.New("kafka down")).Once()

	res, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "ACCEPTED"})
	s.Require().NoError(err)
	s.Require().Equal(models.StatusAccepted, res.Repair.Status)
}

func (s *ServiceSuite) TestTransition_RegressionRejectedWithRecord() {
	cur := detailAt(models.StatusPainting, 5)
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(cur, nil).Once()

	_, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "ACCEPTED"})
	s.Require().ErrorIs(err, models.ErrRegressionNotAllowed)
	s.Require().NotErrorIs(err, models.ErrTerminalState)

	var te *models.TransitionError
	s.Require().True(errors.As(err, &te))
	s.Require().Same(cur.Repair, te.Repair)
	s.Require().Equal(models.StatusPainting, te.From)
	s.Require().Equal(models.StatusAccepted, te.To)
	s.repo.AssertNotCalled(s.T(), "ApplyTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_DeliveredIsTerminal() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusDelivered, 7), nil).Once()

	_, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "IN_PROGRESS"})
	s.Require().ErrorIs(err, models.ErrRegressionNotAllowed)
	s.Require().ErrorIs(err, models.ErrTerminalState)
	s.repo.AssertNotCalled(s.T(), "ApplyTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_SameStatusWithoutNoteIsNoop() {
	cur := detailAt(models.StatusInProgress, 4)
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(cur, nil).Once()

	res, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "IN_PROGRESS", Note: "  "})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeNoop, res.Outcome)
	s.Require().Same(cur.Repair, res.Repair)
	s.Require().Nil(res.Entry)
	s.repo.AssertNotCalled(s.T(), "ApplyTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_SameStatusWithNoteAppendsNoteOnly() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusInProgress, 4), nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(upd models.TransitionUpdate) bool {
		return upd.Kind == models.EntryKindNote &&
			upd.Status == models.StatusInProgress &&
			upd.Note != nil && *upd.Note == "attesa vernice" &&
			upd.Actor != nil && *upd.Actor == "luca"
	})).Return(
		&models.Repair{ID: "r-1", TrackingCode: "FAG-AAAAAA", Status: models.StatusInProgress, Version: 5},
		&models.LedgerEntry{Seq: 5, Status: models.StatusInProgress, Kind: models.EntryKindNote},
		nil,
	).Once()
	s.cache.On("Delete", mock.Anything, "repair:track:FAG-AAAAAA").Return(nil).Once()

	res, err := s.svc.Transition(context.Background(), TransitionRequest{
		RepairID: "r-1", Status: "IN_PROGRESS", Note: "attesa vernice", Actor: "luca",
	})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeNoted, res.Outcome)
	s.pub.AssertNotCalled(s.T(), "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_UnknownStatusRejectedBeforeLookup() {
	_, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "WASHING"})
	s.Require().ErrorIs(err, models.ErrValidation)

	var ve *models.ValidationError
	s.Require().True(errors.As(err, &ve))
	s.Require().Equal("status", ve.Field)
	s.repo.AssertNotCalled(s.T(), "GetRepairDetail", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_NotFound() {
	s.repo.On("GetRepairDetail", mock.Anything, "nope").Return(nil, models.ErrNotFound).Once()

	_, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "nope", Status: "ACCEPTED"})
	s.Require().ErrorIs(err, models.ErrNotFound)
}

func (s *ServiceSuite) TestTransition_ExpectedStatusMismatch() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusInProgress, 4), nil).Once()

	_, err := s.svc.Transition(context.Background(), TransitionRequest{
		RepairID: "r-1", Status: "IN_PROGRESS", ExpectedStatus: "ACCEPTED",
	})
	s.Require().ErrorIs(err, models.ErrConcurrentModification)
	s.repo.AssertNotCalled(s.T(), "ApplyTransition", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestTransition_StoreConflictPassesThrough() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusAccepted, 2), nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, mock.Anything).Return(nil, nil, models.ErrConcurrentModification).Once()

	_, err := s.svc.Transition(context.Background(), TransitionRequest{RepairID: "r-1", Status: "IN_PROGRESS"})
	s.Require().ErrorIs(err, models.ErrConcurrentModification)
}

func (s *ServiceSuite) TestCorrect_RequiresNote() {
	_, err := s.svc.Correct(context.Background(), CorrectionRequest{RepairID: "r-1", Status: "READY", Note: " "})
	s.Require().ErrorIs(err, models.ErrValidation)
	s.repo.AssertNotCalled(s.T(), "GetRepairDetail", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCorrect_OutOfDelivered() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusDelivered, 7), nil).Once()
	s.repo.On("ApplyTransition", mock.Anything, mock.MatchedBy(func(upd models.TransitionUpdate) bool {
		return upd.Kind == models.EntryKindCorrection &&
			upd.Status == models.StatusReady &&
			upd.ClearActualCompletion &&
			upd.ExpectedVersion == 7 &&
			upd.Note != nil && *upd.Note == "consegna registrata per errore"
	})).Return(
		&models.Repair{ID: "r-1", TrackingCode: "FAG-AAAAAA", Status: models.StatusReady, Version: 8},
		&models.LedgerEntry{Seq: 8, Status: models.StatusReady, Kind: models.EntryKindCorrection},
		nil,
	).Once()
	s.cache.On("Delete", mock.Anything, "repair:track:FAG-AAAAAA").Return(nil).Once()
	s.pub.On("Publish", mock.Anything, topic, []byte("r-1"), mock.MatchedBy(func(b []byte) bool {
		var msg messages.StatusChanged
		return json.Unmarshal(b, &msg) == nil && msg.Correction && msg.PreviousStatus == "DELIVERED"
	})).Return(nil).Once()

	res, err := s.svc.Correct(context.Background(), CorrectionRequest{
		RepairID: "r-1", Status: "READY", Note: "consegna registrata per errore", Actor: "admin",
	})
	s.Require().NoError(err)
	s.Require().Equal(OutcomeCorrected, res.Outcome)
}

func (s *ServiceSuite) TestCorrect_SameStatusRejected() {
	s.repo.On("GetRepairDetail", mock.Anything, "r-1").Return(detailAt(models.StatusReady, 6), nil).Once()

	_, err := s.svc.Correct(context.Background(), CorrectionRequest{RepairID: "r-1", Status: "READY", Note: "x"})
	s.Require().ErrorIs(err, models.ErrValidation)
}

func (s *ServiceSuite) TestPublicTracking_MalformedNeverHitsStore() {
	for _, code := range []string{"", "FAG-AAAA", "FAG-AAAAA0", "XYZ-AAAAAA", "FAG-AAAAAAA", "FAGAAAAAAA"} {
		_, err := s.svc.PublicTracking(context.Background(), code)
		s.Require().ErrorIs(err, models.ErrNotFound, code)
	}
	s.repo.AssertNotCalled(s.T(), "GetSnapshotByTrackingCode", mock.Anything, mock.Anything)
	s.cache.AssertNotCalled(s.T(), "Get", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestPublicTracking_UnknownIsGenericNotFound() {
	s.cache.On("Get", mock.Anything, "repair:track:FAG-ZZZZZZ").Return(nil, false, nil).Once()
	s.repo.On("GetSnapshotByTrackingCode", mock.Anything, "FAG-ZZZZZZ").Return(nil, models.ErrNotFound).Once()

	_, err := s.svc.PublicTracking(context.Background(), " fag-zzzzzz ")
	s.Require().Equal(models.ErrNotFound, err)
}

func (s *ServiceSuite) TestPublicTracking_MissThenCached() {
	d := detailAt(models.StatusAccepted, 2)
	note := "auto in officina"
	snap := &models.Snapshot{
		RepairDetail: *d,
		Ledger: []*models.LedgerEntry{
			{Seq: 1, Status: models.StatusIntake, OccurredAt: fixedNow.Add(-time.Hour), Actor: &note},
			{Seq: 2, Status: models.StatusAccepted, OccurredAt: fixedNow, Note: &note},
		},
	}
	s.cache.On("Get", mock.Anything, "repair:track:FAG-AAAAAA").Return(nil, false, nil).Once()
	s.repo.On("GetSnapshotByTrackingCode", mock.Anything, "FAG-AAAAAA").Return(snap, nil).Once()

	var stored []byte
	s.cache.On("Set", mock.Anything, "repair:track:FAG-AAAAAA", mock.Anything, 10*time.Minute).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).
		Return(nil).Once()

	v, err := s.svc.PublicTracking(context.Background(), "fag-aaaaaa")
	s.Require().NoError(err)
	s.Require().Equal(models.StatusAccepted, v.Status)
	s.Require().Equal("AB123CD", v.Vehicle.Plate)
	s.Require().Len(v.History, 2)
	s.Require().Len(v.Timeline, 7)
	s.Require().True(v.Timeline[1].Current)

	// в публичном виде нет данных клиента
	s.Require().NotContains(string(stored), "3331112233")
	s.Require().NotContains(string(stored), "Mario")

	s.cache.On("Get", mock.Anything, "repair:track:FAG-AAAAAA").Return(stored, true, nil).Once()
	again, err := s.svc.PublicTracking(context.Background(), "FAG-AAAAAA")
	s.Require().NoError(err)
	s.Require().Equal(v.Status, again.Status)
	s.Require().Equal(len(v.Timeline), len(again.Timeline))
}

func (s *ServiceSuite) TestList_InvalidStatusFilter() {
	_, err := s.svc.List(context.Background(), ListFilter{Status: "LOST"})
	s.Require().ErrorIs(err, models.ErrValidation)
}

func (s *ServiceSuite) TestList_PassesFilter() {
	ready := models.StatusReady
	s.repo.On("ListRepairs", mock.Anything, models.RepairFilter{Status: &ready, Search: "AB1", Limit: 20, Offset: 40}).
		Return(nil, nil).Once()

	items, err := s.svc.List(context.Background(), ListFilter{Status: "ready", Search: " AB1 ", Limit: 20, Offset: 40})
	s.Require().NoError(err)
	s.Require().NotNil(items)
	s.Require().Empty(items)
}

func (s *ServiceSuite) TestStats_Buckets() {
	s.repo.On("CountByStatus", mock.Anything).Return(map[models.Status]int64{
		models.StatusIntake:        2,
		models.StatusAccepted:      1,
		models.StatusAwaitingParts: 3,
		models.StatusPainting:      1,
		models.StatusReady:         4,
		models.StatusDelivered:     10,
	}, nil).Once()

	st, err := s.svc.Stats(context.Background())
	s.Require().NoError(err)
	s.Require().Equal(int64(21), st.Total)
	s.Require().Equal(int64(2), st.Intake)
	s.Require().Equal(int64(5), st.InProgress)
	s.Require().Equal(int64(4), st.Ready)
	s.Require().Equal(int64(11), st.Open)
	s.Require().Equal(int64(0), st.ByStatus[models.StatusQualityCheck])
	s.Require().Len(st.ByStatus, len(models.StatusOrder))
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
