package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"career-compass/internal/types"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fillAnswers(t *testing.T, m *Machine) {
	t.Helper()
	require.NoError(t, m.SetPersonality("Creative Innovator"))
	require.NoError(t, m.ToggleCareerValue("Growth"))
	require.NoError(t, m.SetCurrentRole("Designer"))
	require.NoError(t, m.SetExperienceLevel("senior"))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "React", Level: 7}))
	require.NoError(t, m.UpsertSoftSkill(types.SkillRating{Skill: "Leadership", Level: 9}))
	require.NoError(t, m.ToggleIndustry("Education"))
	require.NoError(t, m.SetRemote(true))
}

func TestNavigationIsPureWithRespectToAnswers(t *testing.T) {
	m := New(DefaultCaps())
	fillAnswers(t, m)
	before := m.Answers()

	moves := []func() error{m.Next, m.Next, m.Previous, m.Next, m.Next, m.Next, m.Previous, m.Previous, m.Previous, m.Previous}
	for _, move := range moves {
		require.NoError(t, move())
	}

	if diff := cmp.Diff(before, m.Answers()); diff != "" {
		t.Fatalf("导航改变了答案 (-before +after):\n%s", diff)
	}
	assert.Equal(t, StepPersonality, m.State().Step)
}

func TestNavigationBounds(t *testing.T) {
	m := New(DefaultCaps())
	assert.ErrorIs(t, m.Previous(), types.ErrFirstStep)

	for i := 0; i < StepCount-1; i++ {
		require.NoError(t, m.Next())
	}
	st := m.State()
	assert.Equal(t, StepPreferences, st.Step)
	assert.Equal(t, "preferences", st.StepID)
	assert.Equal(t, 5, st.StepCount)
	assert.ErrorIs(t, m.Next(), types.ErrLastStep)
}

func TestSkillUpsertIsIdempotentReplace(t *testing.T) {
	m := New(DefaultCaps())
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "Python", Level: 3}))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "SQL", Level: 5}))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "Python", Level: 9}))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "Python", Level: 9}))

	want := []types.SkillRating{{Skill: "Python", Level: 9}, {Skill: "SQL", Level: 5}}
	if diff := cmp.Diff(want, m.Answers().TechnicalSkills); diff != "" {
		t.Fatalf("技能列表不符 (-want +got):\n%s", diff)
	}
}

func TestSoftSkillDropsYearsExperience(t *testing.T) {
	m := New(DefaultCaps())
	years := 2.0
	require.NoError(t, m.UpsertSoftSkill(types.SkillRating{Skill: "Communication", Level: 4, YearsExperience: &years}))
	assert.Nil(t, m.Answers().SoftSkills[0].YearsExperience)
}

func TestSkillLevelOutOfRange(t *testing.T) {
	m := New(DefaultCaps())
	for _, level := range []int{0, 11, -1} {
		err := m.UpsertTechnicalSkill(types.SkillRating{Skill: "Java", Level: level})
		assert.ErrorIs(t, err, types.ErrValidation)
	}
	assert.ErrorIs(t, m.UpsertSoftSkill(types.SkillRating{Skill: "  ", Level: 5}), types.ErrValidation)
	assert.Empty(t, m.Answers().TechnicalSkills)
	assert.Empty(t, m.Answers().SoftSkills)
}

func TestCapsAreNeverExceeded(t *testing.T) {
	m := New(Caps{CareerValues: 4, Industries: 3})
	for _, v := range []string{"Innovation", "Growth", "Autonomy", "Stability", "Impact", "Recognition"} {
		require.NoError(t, m.ToggleCareerValue(v))
	}
	assert.Equal(t, []string{"Innovation", "Growth", "Autonomy", "Stability"}, m.Answers().CareerValues)

	for _, v := range []string{"Technology", "Healthcare", "Finance", "Education"} {
		require.NoError(t, m.ToggleIndustry(v))
	}
	assert.Equal(t, []string{"Technology", "Healthcare", "Finance"}, m.Answers().PreferredIndustries)

	// 取消一个后可以再选
	require.NoError(t, m.ToggleIndustry("Healthcare"))
	require.NoError(t, m.ToggleIndustry("Education"))
	assert.Equal(t, []string{"Technology", "Finance", "Education"}, m.Answers().PreferredIndustries)
}

func TestZeroCapMeansUnlimited(t *testing.T) {
	m := New(Caps{})
	for _, v := range []string{"Innovation", "Growth", "Autonomy", "Stability", "Impact", "Recognition"} {
		require.NoError(t, m.ToggleCareerValue(v))
	}
	assert.Len(t, m.Answers().CareerValues, 6)
}

func TestSnapshotsNeverChange(t *testing.T) {
	m := New(DefaultCaps())
	require.NoError(t, m.ToggleCareerValue("Growth"))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "Python", Level: 3}))
	snap := m.Answers()

	require.NoError(t, m.ToggleCareerValue("Impact"))
	require.NoError(t, m.UpsertTechnicalSkill(types.SkillRating{Skill: "Python", Level: 10}))

	assert.Equal(t, []string{"Growth"}, snap.CareerValues)
	assert.Equal(t, 3, snap.TechnicalSkills[0].Level)
}

func TestUnknownEnumValues(t *testing.T) {
	m := New(DefaultCaps())
	assert.ErrorIs(t, m.SetPersonality("Chaotic Neutral"), types.ErrValidation)
	assert.ErrorIs(t, m.SetExperienceLevel("intern"), types.ErrValidation)
	assert.ErrorIs(t, m.SetEducationLevel("diploma"), types.ErrValidation)
	assert.ErrorIs(t, m.SetTeamSize("huge"), types.ErrValidation)
	assert.ErrorIs(t, m.ToggleCareerValue("Fame"), types.ErrValidation)
	assert.ErrorIs(t, m.ToggleIndustry("Mining"), types.ErrValidation)
	assert.ErrorIs(t, m.SetWorkLifeBalance(11), types.ErrValidation)

	if diff := cmp.Diff(types.NewQuestionnaireAnswers(), m.Answers()); diff != "" {
		t.Fatalf("无效输入修改了答案:\n%s", diff)
	}
}

func TestUpdateByPath(t *testing.T) {
	m := New(DefaultCaps())
	updates := []struct {
		path  string
		value string
	}{
		{PathPersonalityType, `"People Leader"`},
		{PathCareerValues, `"Autonomy"`},
		{PathCurrentRole, `"Nurse"`},
		{PathExperienceLevel, `"entry"`},
		{PathEducationLevel, `"phd"`},
		{PathPreferredIndustries, `"Healthcare"`},
		{PathTechnicalSkills, `{"skill":"SQL","level":6,"yearsExperience":1.5}`},
		{PathSoftSkills, `{"skill":"Problem Solving","level":8}`},
		{PathRemote, `true`},
		{PathTeamSize, `"small"`},
		{PathWorkLifeBalance, `7`},
		{PathGrowthOriented, `false`},
	}
	for _, u := range updates {
		require.NoError(t, m.Update(u.path, json.RawMessage(u.value)), u.path)
	}

	years := 1.5
	growth := false
	want := types.QuestionnaireAnswers{
		PersonalityType:     "People Leader",
		CareerValues:        []string{"Autonomy"},
		CurrentRole:         "Nurse",
		ExperienceLevel:     "entry",
		EducationLevel:      "phd",
		PreferredIndustries: []string{"Healthcare"},
		TechnicalSkills:     []types.SkillRating{{Skill: "SQL", Level: 6, YearsExperience: &years}},
		SoftSkills:          []types.SkillRating{{Skill: "Problem Solving", Level: 8}},
		WorkStylePreferences: types.WorkStylePreferences{
			Remote:          true,
			TeamSize:        "small",
			WorkLifeBalance: 7,
			GrowthOriented:  &growth,
		},
	}
	if diff := cmp.Diff(want, m.Answers()); diff != "" {
		t.Fatalf("答案不符 (-want +got):\n%s", diff)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	m := New(DefaultCaps())
	assert.ErrorIs(t, m.Update("salary", json.RawMessage(`1`)), types.ErrValidation)
	assert.ErrorIs(t, m.Update(PathWorkLifeBalance, json.RawMessage(`"high"`)), types.ErrValidation)
	assert.ErrorIs(t, m.Update(PathWorkLifeBalance, json.RawMessage(`5.5`)), types.ErrValidation)
	assert.ErrorIs(t, m.Update(PathTechnicalSkills, json.RawMessage(`{"skill":"Go","level":5,"rank":1}`)), types.ErrValidation)
	assert.ErrorIs(t, m.Update(PathRemote, nil), types.ErrValidation)
}

func TestSubmitFromNonFinalStepIsRejected(t *testing.T) {
	m := New(DefaultCaps())
	called := false
	_, err := m.Submit(context.Background(), PredictorFunc(func(ctx context.Context, a types.QuestionnaireAnswers) (*types.PredictionResult, error) {
		called = true
		return &types.PredictionResult{Career: "x"}, nil
	}))
	assert.ErrorIs(t, err, types.ErrNotFinalStep)
	assert.False(t, called)
}

func toFinal(t *testing.T, m *Machine) {
	t.Helper()
	for !m.State().Step.IsFinal() {
		require.NoError(t, m.Next())
	}
}

func TestSubmitSuccess(t *testing.T) {
	m := New(DefaultCaps())
	fillAnswers(t, m)
	toFinal(t, m)

	var got types.QuestionnaireAnswers
	res, err := m.Submit(context.Background(), PredictorFunc(func(ctx context.Context, a types.QuestionnaireAnswers) (*types.PredictionResult, error) {
		got = a
		return &types.PredictionResult{Career: "UX Designer"}, nil
	}))
	require.NoError(t, err)
	assert.Equal(t, "UX Designer", res.Career)
	assert.Equal(t, "Creative Innovator", got.PersonalityType)
	assert.False(t, m.State().Submitting)
}

func TestSubmitFailureKeepsAnswers(t *testing.T) {
	m := New(DefaultCaps())
	fillAnswers(t, m)
	toFinal(t, m)
	before := m.Answers()

	_, err := m.Submit(context.Background(), PredictorFunc(func(ctx context.Context, a types.QuestionnaireAnswers) (*types.PredictionResult, error) {
		return nil, types.NewBackendError("predict", 500, "boom")
	}))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrBackend)

	st := m.State()
	assert.Equal(t, StepPreferences, st.Step)
	assert.False(t, st.Submitting)
	if diff := cmp.Diff(before, st.Answers); diff != "" {
		t.Fatalf("提交失败后答案丢失:\n%s", diff)
	}
}

func TestSubmitInFlight(t *testing.T) {
	m := New(DefaultCaps())
	toFinal(t, m)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = m.Submit(context.Background(), PredictorFunc(func(ctx context.Context, a types.QuestionnaireAnswers) (*types.PredictionResult, error) {
			close(entered)
			<-release
			return nil, errors.New("late")
		}))
	}()
	<-entered

	_, err := m.Submit(context.Background(), PredictorFunc(func(ctx context.Context, a types.QuestionnaireAnswers) (*types.PredictionResult, error) {
		t.Fatal("第二次提交不应调用后端")
		return nil, nil
	}))
	assert.ErrorIs(t, err, types.ErrSubmitInFlight)
	assert.True(t, m.State().Submitting)
	assert.ErrorIs(t, m.Previous(), types.ErrSubmitInFlight)
	assert.ErrorIs(t, m.SetRemote(true), types.ErrSubmitInFlight)

	close(release)
	wg.Wait()
	assert.False(t, m.State().Submitting)
}
