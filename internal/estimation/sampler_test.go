package estimation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"agegate/internal/estimation"
	"agegate/internal/estimation/mocks"
	"agegate/internal/policy"
	"agegate/pkg/platform/sentinel"
)

// SamplerSuite covers the tick pipeline and the loop lifecycle.
//
// Justification: the sampler owns the device for the run; leaks and stale
// samples are only observable at this level.
type SamplerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	source    *mocks.MockFrameSource
	estimator *mocks.MockEstimator
	policy    policy.Policy
	sampler   *estimation.Sampler
}

func TestSamplerSuite(t *testing.T) {
	suite.Run(t, new(SamplerSuite))
}

func (s *SamplerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.source = mocks.NewMockFrameSource(s.ctrl)
	s.estimator = mocks.NewMockEstimator(s.ctrl)
	s.policy = policy.Default()
	s.policy.SamplingInterval = 2 * time.Millisecond
	s.policy.MaxEstimatorFailures = 3

	var err error
	s.sampler, err = estimation.New(s.source, s.estimator, s.policy)
	s.Require().NoError(err)
}

var frame = estimation.Frame{Seq: 1, Width: 640, Height: 480}

// =============================================================================
// Construction
// =============================================================================

func (s *SamplerSuite) TestNew_RequiresDependencies() {
	_, err := estimation.New(nil, s.estimator, s.policy)
	s.Error(err)

	_, err = estimation.New(s.source, nil, s.policy)
	s.Error(err)

	bad := s.policy
	bad.SamplingInterval = 0
	_, err = estimation.New(s.source, s.estimator, bad)
	s.Error(err)
}

// =============================================================================
// Step: one tick of the pipeline
// =============================================================================

func (s *SamplerSuite) TestStep_MissedFrameKeepsPreviousSample() {
	ctx := context.Background()
	s.source.EXPECT().Next().Return(frame, true)
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{{Width: 100, Height: 100}}, nil)
	s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, gomock.Any()).Return(estimation.AgeBracket(5), nil)
	_, ok := s.sampler.Step(ctx)
	s.Require().True(ok)

	s.source.EXPECT().Next().Return(estimation.Frame{}, false)
	_, ok = s.sampler.Step(ctx)
	s.False(ok, "missed frame skips the tick")

	latest, ok := s.sampler.Latest()
	s.Require().True(ok)
	s.Equal(40, latest.RepresentativeAge)
}

func (s *SamplerSuite) TestStep_NoFaceClearsLatest() {
	ctx := context.Background()
	s.source.EXPECT().Next().Return(frame, true).Times(2)
	gomock.InOrder(
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{{Width: 80, Height: 80}}, nil),
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, nil),
	)
	s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, gomock.Any()).Return(estimation.AgeBracket(7), nil)

	tick, ok := s.sampler.Step(ctx)
	s.Require().True(ok)
	s.Equal(estimation.SignalCameraEligible, tick.Signal)

	tick, ok = s.sampler.Step(ctx)
	s.Require().True(ok)
	s.Equal(estimation.SignalNoFace, tick.Signal)
	s.Nil(tick.Sample)
	_, ok = s.sampler.Latest()
	s.False(ok)
}

func (s *SamplerSuite) TestStep_ClassifiesLargestFace() {
	small := estimation.FaceRegion{X: 0, Y: 0, Width: 40, Height: 40}
	large := estimation.FaceRegion{X: 200, Y: 100, Width: 120, Height: 140}
	s.source.EXPECT().Next().Return(frame, true)
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{small, large}, nil)
	s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, large).Return(estimation.AgeBracket(4), nil)

	tick, ok := s.sampler.Step(context.Background())
	s.Require().True(ok)
	s.Equal(2, tick.Faces)
	s.Require().NotNil(tick.Sample)
	s.Equal(28, tick.Sample.RepresentativeAge)
	s.Equal(policy.TierMedium, tick.Sample.Tier)
	s.Equal("25-32", tick.Sample.Label)
}

func (s *SamplerSuite) TestStep_SignalsFollowBands() {
	p := s.policy
	p.Brackets = policy.DefaultBrackets()
	p.Brackets[4].RepresentativeAge = 22
	sampler, err := estimation.New(s.source, s.estimator, p)
	s.Require().NoError(err)

	tests := []struct {
		bracket estimation.AgeBracket
		want    estimation.Signal
	}{
		{0, estimation.SignalDenyCandidate},
		{3, estimation.SignalDenyCandidate},
		{4, estimation.SignalDocumentRequired},
		{5, estimation.SignalCameraEligible},
	}
	for _, tt := range tests {
		s.source.EXPECT().Next().Return(frame, true)
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{{Width: 10, Height: 10}}, nil)
		s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, gomock.Any()).Return(tt.bracket, nil)

		tick, ok := sampler.Step(context.Background())
		s.Require().True(ok)
		s.Equal(tt.want, tick.Signal, "bracket %d", tt.bracket)
	}
}

func (s *SamplerSuite) TestStep_EstimatorFailuresBecomeFatalAfterBudget() {
	ctx := context.Background()
	boom := errors.New("inference backend down")
	s.source.EXPECT().Next().Return(frame, true).Times(3)
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, boom).Times(3)

	_, ok := s.sampler.Step(ctx)
	s.False(ok)
	_, ok = s.sampler.Step(ctx)
	s.False(ok)

	tick, ok := s.sampler.Step(ctx)
	s.Require().True(ok)
	s.ErrorIs(tick.Err, estimation.ErrDeviceUnavailable)
	s.ErrorIs(tick.Err, sentinel.ErrUnavailable)
	s.ErrorIs(tick.Err, boom)
}

func (s *SamplerSuite) TestStep_SuccessResetsFailureBudget() {
	ctx := context.Background()
	boom := errors.New("timeout")
	s.source.EXPECT().Next().Return(frame, true).Times(5)
	gomock.InOrder(
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, boom).Times(2),
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, nil),
		s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, boom).Times(2),
	)

	for i := 0; i < 5; i++ {
		tick, _ := s.sampler.Step(ctx)
		s.NoError(tick.Err, "step %d", i)
	}
}

func (s *SamplerSuite) TestStep_OutOfRangeBracketCountsAsFailure() {
	s.policy.MaxEstimatorFailures = 1
	sampler, err := estimation.New(s.source, s.estimator, s.policy)
	s.Require().NoError(err)

	s.source.EXPECT().Next().Return(frame, true)
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{{Width: 1, Height: 1}}, nil)
	s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, gomock.Any()).Return(estimation.AgeBracket(9), nil)

	tick, ok := sampler.Step(context.Background())
	s.Require().True(ok)
	s.ErrorIs(tick.Err, estimation.ErrDeviceUnavailable)
}

// =============================================================================
// Lifecycle: Start / Stop
// =============================================================================

func (s *SamplerSuite) TestStart_OpenFailureIsDeviceUnavailable() {
	s.source.EXPECT().Open(gomock.Any()).Return(errors.New("no camera"))

	err := s.sampler.Start(context.Background())
	s.ErrorIs(err, estimation.ErrDeviceUnavailable)

	// never opened, so never closed
	s.sampler.Stop()
}

func (s *SamplerSuite) TestStopBeforeStartIsNoop() {
	s.sampler.Stop()
	s.sampler.Stop()
	s.ErrorIs(s.sampler.Start(context.Background()), estimation.ErrAlreadyStarted)
}

func (s *SamplerSuite) TestLoop_PublishesAndReleasesOnStop() {
	s.source.EXPECT().Open(gomock.Any()).Return(nil)
	s.source.EXPECT().Next().Return(frame, true).AnyTimes()
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return([]estimation.FaceRegion{{Width: 50, Height: 50}}, nil).AnyTimes()
	s.estimator.EXPECT().ClassifyAge(gomock.Any(), frame, gomock.Any()).Return(estimation.AgeBracket(6), nil).AnyTimes()
	s.source.EXPECT().Close().Return(nil).Times(1)

	s.Require().NoError(s.sampler.Start(context.Background()))
	s.ErrorIs(s.sampler.Start(context.Background()), estimation.ErrAlreadyStarted)

	select {
	case tick := <-s.sampler.Ticks():
		s.Require().NotNil(tick.Sample)
		s.Equal(50, tick.Sample.RepresentativeAge)
	case <-time.After(time.Second):
		s.FailNow("no tick published")
	}

	// unread ticks are replaced, never queued
	time.Sleep(20 * time.Millisecond)
	s.LessOrEqual(len(s.sampler.Ticks()), 1)

	s.sampler.Stop()
	s.sampler.Stop()
	_, ok := s.sampler.Latest()
	s.False(ok, "sample discarded when sampling stops")
}

func (s *SamplerSuite) TestLoop_StopsAfterFatalTick() {
	s.source.EXPECT().Open(gomock.Any()).Return(nil)
	s.source.EXPECT().Next().Return(frame, true).Times(3)
	s.estimator.EXPECT().DetectFaces(gomock.Any(), frame).Return(nil, errors.New("gpu lost")).Times(3)
	s.source.EXPECT().Close().Return(nil)

	s.Require().NoError(s.sampler.Start(context.Background()))

	select {
	case tick := <-s.sampler.Ticks():
		s.ErrorIs(tick.Err, estimation.ErrDeviceUnavailable)
	case <-time.After(time.Second):
		s.FailNow("fatal tick not published")
	}
	s.sampler.Stop()
}
