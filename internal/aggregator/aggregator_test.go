package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"career-compass/internal/backend"
	"career-compass/internal/constants"
	"career-compass/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// stubFetcher 每个区块可以单独控制返回值和阻塞
type stubFetcher struct {
	roadmap     []string
	mentors     []types.Mentor
	jobs        []types.Job
	roadmapErr  error
	mentorsErr  error
	jobsErr     error
	blockJobs   chan struct{}
	jobsStarted chan struct{}
}

func (s *stubFetcher) Roadmap(ctx context.Context, career string) ([]string, error) {
	return s.roadmap, s.roadmapErr
}

func (s *stubFetcher) Mentors(ctx context.Context, career string) ([]types.Mentor, error) {
	return s.mentors, s.mentorsErr
}

func (s *stubFetcher) Jobs(ctx context.Context, career string) ([]types.Job, error) {
	if s.jobsStarted != nil {
		close(s.jobsStarted)
	}
	if s.blockJobs != nil {
		select {
		case <-s.blockJobs:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.jobs, s.jobsErr
}

func waitView(t *testing.T, a *Aggregate) View {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	v, err := a.Wait(ctx)
	require.NoError(t, err)
	return v
}

func TestDataScientistScenario(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/get_roadmap/Data Scientist":
			_, _ = io.WriteString(w, `{"roadmap":["Learn Python","Build portfolio"]}`)
		case "/get_mentors/Data Scientist":
			_, _ = io.WriteString(w, `{"mentors":[]}`)
		case "/api/jobs":
			_, _ = io.WriteString(w, `{"jobs":[{"title":"Data Scientist","company":"Acme","location":"Remote","salary":"$100k","link":"http://x"}]}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := backend.NewClient(srv.URL, 5*time.Second)
	a := Start(context.Background(), client, types.PredictionResult{Career: "Data Scientist"})
	v := waitView(t, a)

	assert.True(t, v.Complete)
	assert.Equal(t, "Data Scientist", v.Career)

	assert.Equal(t, StatusReady, v.Roadmap.Status)
	assert.Equal(t, []string{"Learn Python", "Build portfolio"}, v.Roadmap.Items)

	assert.Equal(t, StatusUnavailable, v.Mentors.Status)
	assert.Empty(t, v.Mentors.Items)
	assert.Equal(t, constants.MentorsEmptyMessage, v.Mentors.Message)

	assert.Equal(t, StatusReady, v.Jobs.Status)
	require.Len(t, v.Jobs.Items, 1)
	assert.Equal(t, types.Job{Title: "Data Scientist", Company: "Acme", Location: "Remote", Salary: "$100k", Link: "http://x"}, v.Jobs.Items[0])
}

func TestFailureIsLocalToSection(t *testing.T) {
	f := &stubFetcher{
		roadmapErr: errors.New("404"),
		mentors:    []types.Mentor{{Name: "Grace"}},
		jobsErr:    types.NewNetworkError("jobs", errors.New("timeout")),
	}
	v := waitView(t, Start(context.Background(), f, types.PredictionResult{Career: "Engineer", Recommendations: []string{"Engineer", "Architect"}}))

	assert.Equal(t, StatusUnavailable, v.Roadmap.Status)
	assert.Equal(t, constants.RoadmapEmptyMessage, v.Roadmap.Message)
	assert.Equal(t, StatusReady, v.Mentors.Status)
	assert.Equal(t, "Grace", v.Mentors.Items[0].Name)
	assert.Equal(t, StatusUnavailable, v.Jobs.Status)
	assert.Equal(t, constants.JobsEmptyMessage, v.Jobs.Message)
	assert.Equal(t, []string{"Engineer", "Architect"}, v.Recommendations)
}

func TestSlowSectionDoesNotBlockOthers(t *testing.T) {
	f := &stubFetcher{
		roadmap:     []string{"step"},
		mentors:     []types.Mentor{{Name: "Ada"}},
		blockJobs:   make(chan struct{}),
		jobsStarted: make(chan struct{}),
		jobs:        []types.Job{{Title: "Dev"}},
	}
	a := Start(context.Background(), f, types.PredictionResult{Career: "Dev"})
	<-f.jobsStarted

	require.Eventually(t, func() bool {
		v := a.Snapshot()
		return v.Roadmap.Status == StatusReady && v.Mentors.Status == StatusReady
	}, 2*time.Second, 5*time.Millisecond)

	v := a.Snapshot()
	assert.False(t, v.Complete)
	assert.Equal(t, StatusLoading, v.Jobs.Status)

	close(f.blockJobs)
	v = waitView(t, a)
	assert.True(t, v.Complete)
	assert.Equal(t, StatusReady, v.Jobs.Status)
}

func TestCancelAbandonsInFlightFetches(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	f := &stubFetcher{blockJobs: make(chan struct{}), jobsStarted: make(chan struct{})}
	a := Start(context.Background(), f, types.PredictionResult{Career: "Dev"})
	<-f.jobsStarted

	a.Cancel()
	a.Cancel()
	v := waitView(t, a)
	assert.Equal(t, StatusUnavailable, v.Jobs.Status)
}

func TestWaitHonoursContext(t *testing.T) {
	f := &stubFetcher{blockJobs: make(chan struct{}), jobsStarted: make(chan struct{})}
	a := Start(context.Background(), f, types.PredictionResult{Career: "Dev"})
	defer a.Cancel()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	v, err := a.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, v.Complete)
}

func TestChatContextFromView(t *testing.T) {
	f := &stubFetcher{
		mentors: []types.Mentor{{Name: "Ada", Experience: "7"}},
		jobs:    []types.Job{{Title: "Dev"}},
	}
	v := waitView(t, Start(context.Background(), f, types.PredictionResult{Career: "Dev", Recommendations: []string{"Dev"}}))
	cc := v.ChatContext()
	assert.Equal(t, "Dev", cc.Career)
	assert.Equal(t, []string{"Dev"}, cc.Recommendations)
	// 发给后端的是原始导师数据，不带展示字段
	assert.Equal(t, []types.Mentor{{Name: "Ada", Experience: "7"}}, cc.Mentors)
	assert.Len(t, cc.Jobs, 1)
}

func TestMentorCardsFormatExperience(t *testing.T) {
	f := &stubFetcher{
		mentors: []types.Mentor{
			{Name: "Grace", Experience: "12"},
			{Name: "Linus", Experience: "decades"},
			{Name: "Anon", Experience: "—"},
		},
	}
	v := waitView(t, Start(context.Background(), f, types.PredictionResult{Career: "Engineer"}))

	require.Len(t, v.Mentors.Items, 3)
	assert.Equal(t, "12 years", v.Mentors.Items[0].ExperienceText)
	assert.Equal(t, "decades", v.Mentors.Items[1].ExperienceText)
	assert.Empty(t, v.Mentors.Items[2].ExperienceText)

	data, err := json.Marshal(v.Mentors.Items[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Grace","experience":"12","experience_text":"12 years"}`, string(data))
}
