package sqlxrepos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/user"
	"github.com/trezcool/masomo-obe/storage/database/dbtest"
)

type fixture struct {
	ctx   context.Context
	repos *Repositories

	teacher  user.User
	students []user.User
	dept     course.Department
	course   course.Course
}

func newFixture(t *testing.T) (*fixture, *sqlx.DB) {
	t.Helper()
	db := dbtest.NewDB(t)
	f := &fixture{ctx: context.Background(), repos: NewRepositories(db)}

	f.teacher = f.createUser(t, "Mr Teacher", "teacher", user.RoleTeacher)
	f.students = []user.User{
		f.createUser(t, "Alice", "alice1", user.RoleStudent),
		f.createUser(t, "Bob", "bobby1", user.RoleStudent),
	}

	var err error
	f.dept, err = f.repos.Courses.CreateDepartment(f.ctx, course.Department{Name: "Computer Science", Code: "CS"})
	require.NoError(t, err)
	f.course, err = f.repos.Courses.CreateCourse(f.ctx, course.Course{Department: f.dept.ID, Code: "CS101", Name: "Intro"})
	require.NoError(t, err)
	return f, db
}

func (f *fixture) createUser(t *testing.T, name, uname string, roles ...string) user.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	usr := user.User{Name: name, Username: uname, Email: uname + "@example.com", IsActive: true, Roles: roles, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword("Pass1234!"))
	usr, err := f.repos.Users.CreateUser(f.ctx, usr)
	require.NoError(t, err)
	return usr
}

func (f *fixture) createAssessment(t *testing.T, title string, weight assessment.GradeWeightPercent) assessment.Assessment {
	t.Helper()
	a, err := f.repos.Assessments.CreateAssessment(f.ctx, assessment.Assessment{
		Course:         f.course.ID,
		Title:          title,
		Type:           assessment.TypeExam,
		MaxScore:       50,
		Weight:         weight,
		FeedbackRanges: assessment.FeedbackRanges{},
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) createLO(t *testing.T, code string) outcome.LearningOutcome {
	t.Helper()
	lo, err := f.repos.Outcomes.CreateLearningOutcome(f.ctx, outcome.LearningOutcome{
		Course: f.course.ID, Code: code, Title: code + " title", Description: code + " description", TargetPercentage: 60,
	})
	require.NoError(t, err)
	return lo
}

func TestUserRepository(t *testing.T) {
	f, _ := newFixture(t)
	repo := f.repos.Users

	t.Run("uniqueness", func(t *testing.T) {
		assert.Equal(t, user.ErrUsernameExists, repo.CheckUsernameUniqueness(f.ctx, "alice1", "new@example.com"))
		assert.Equal(t, user.ErrEmailExists, repo.CheckUsernameUniqueness(f.ctx, "newuser", "alice1@example.com"))
		assert.NoError(t, repo.CheckUsernameUniqueness(f.ctx, "alice1", "alice1@example.com", f.students[0]))
		assert.NoError(t, repo.CheckUsernameUniqueness(f.ctx, "", ""))
	})

	t.Run("get", func(t *testing.T) {
		usr, err := repo.GetUserByUsernameOrEmail(f.ctx, "bobby1@example.com")
		require.NoError(t, err)
		assert.Equal(t, f.students[1].ID, usr.ID)
		assert.Equal(t, []string{user.RoleStudent}, usr.Roles)
		assert.NoError(t, usr.CheckPassword("Pass1234!"))
		assert.True(t, usr.LastLogin.IsZero())

		_, err = repo.GetUserByID(f.ctx, 999)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("filter", func(t *testing.T) {
		inactive := false
		tests := []struct {
			name   string
			filter user.QueryFilter
			want   []int
		}{
			{"search", user.QueryFilter{Search: "ALI"}, []int{f.students[0].ID}},
			{"role", user.QueryFilter{Roles: []string{user.RoleTeacher}}, []int{f.teacher.ID}},
			{"roles", user.QueryFilter{Roles: []string{user.RoleStudent}}, []int{f.students[0].ID, f.students[1].ID}},
			{"inactive", user.QueryFilter{IsActive: &inactive}, []int{}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				users, err := repo.FilterUsers(f.ctx, tc.filter)
				require.NoError(t, err)
				ids := make([]int, 0, len(users))
				for _, usr := range users {
					ids = append(ids, usr.ID)
				}
				assert.Equal(t, tc.want, ids)
			})
		}
	})

	t.Run("update", func(t *testing.T) {
		inactive := false
		usr := f.students[1]
		usr.Name = "Robert"
		usr.Roles = []string{user.RoleStudent, user.RoleTeacher}
		updated, err := repo.UpdateUser(f.ctx, usr, &inactive)
		require.NoError(t, err)
		assert.Equal(t, "Robert", updated.Name)
		assert.False(t, updated.IsActive)
		assert.Equal(t, usr.Roles, updated.Roles)

		at := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, repo.SetLastLogin(f.ctx, usr.ID, at))
		got, err := repo.GetUserByID(f.ctx, usr.ID)
		require.NoError(t, err)
		assert.True(t, at.Equal(got.LastLogin))
	})

	t.Run("delete", func(t *testing.T) {
		extra := f.createUser(t, "Temp", "temporary")
		require.NoError(t, repo.DeleteUsersByID(f.ctx, extra.ID))
		_, err := repo.GetUserByID(f.ctx, extra.ID)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})
}

func TestCourseRepository(t *testing.T) {
	f, _ := newFixture(t)
	repo := f.repos.Courses

	_, err := repo.CreateDepartment(f.ctx, course.Department{Name: "Other", Code: "CS"})
	assert.Equal(t, course.ErrCodeExists, err)
	_, err = repo.CreateCourse(f.ctx, course.Course{Department: f.dept.ID, Code: "CS101", Name: "Again"})
	assert.Equal(t, course.ErrCodeExists, err)

	cs, err := repo.QueryCourses(f.ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []course.Course{f.course}, cs)

	ok, err := repo.IsStudent(f.ctx, f.students[0].ID)
	require.NoError(t, err)
	assert.True(t, ok)
	for _, id := range []int{f.teacher.ID, 999} {
		ok, err = repo.IsStudent(f.ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)
	}

	e, err := repo.CreateEnrollment(f.ctx, course.Enrollment{Course: f.course.ID, Student: f.students[0].ID})
	require.NoError(t, err)
	_, err = repo.CreateEnrollment(f.ctx, course.Enrollment{Course: f.course.ID, Student: f.students[0].ID})
	assert.Equal(t, course.ErrAlreadyEnrolled, err)

	es, err := repo.QueryEnrollments(f.ctx, f.course.ID)
	require.NoError(t, err)
	require.Len(t, es, 1)
	assert.Equal(t, "Alice", es[0].StudentName)

	require.NoError(t, repo.DeleteEnrollment(f.ctx, e.ID))
	assert.ErrorIs(t, repo.DeleteEnrollment(f.ctx, e.ID), core.ErrNotFound)
}

func TestOutcomeRepository(t *testing.T) {
	f, _ := newFixture(t)
	repo := f.repos.Outcomes

	a := f.createAssessment(t, "Midterm", 40)
	lo := f.createLO(t, "LO1")
	_, err := repo.CreateLearningOutcome(f.ctx, outcome.LearningOutcome{Course: f.course.ID, Code: "LO1", Title: "dup"})
	assert.Equal(t, outcome.ErrCodeExists, err)

	po, err := repo.CreateProgramOutcome(f.ctx, outcome.ProgramOutcome{Department: f.dept.ID, Code: "PO1", Title: "Design", TargetPercentage: 70})
	require.NoError(t, err)
	_, err = repo.CreateProgramOutcome(f.ctx, outcome.ProgramOutcome{Department: 999, Code: "PO1", Title: "Design"})
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Contains(t, vErr.FieldMap(), "department")

	t.Run("assessment-lo", func(t *testing.T) {
		m, err := repo.CreateAssessmentLO(f.ctx, outcome.AssessmentLO{Assessment: a.ID, LearningOutcome: lo.ID, Weight: 5})
		require.NoError(t, err)
		assert.Equal(t, f.course.ID, m.Course)
		assert.Equal(t, "Midterm", m.AssessmentTitle)
		assert.Equal(t, "LO1", m.LOCode)
		assert.Equal(t, "LO1 description", m.LODescription)

		_, err = repo.CreateAssessmentLO(f.ctx, outcome.AssessmentLO{Assessment: a.ID, LearningOutcome: lo.ID, Weight: 2})
		assert.Equal(t, outcome.ErrMappingExists, err)

		m, err = repo.UpdateAssessmentLOWeight(f.ctx, m.ID, 7.5)
		require.NoError(t, err)
		assert.Equal(t, outcome.ContributionWeight(7.5), m.Weight)

		ms, err := repo.QueryAssessmentLOs(f.ctx, f.course.ID)
		require.NoError(t, err)
		assert.Equal(t, []outcome.AssessmentLO{m}, ms)

		require.NoError(t, repo.DeleteAssessmentLO(f.ctx, m.ID))
		assert.ErrorIs(t, repo.DeleteAssessmentLO(f.ctx, m.ID), core.ErrNotFound)
		_, err = repo.UpdateAssessmentLOWeight(f.ctx, m.ID, 1)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("lo-po", func(t *testing.T) {
		m, err := repo.CreateLOPO(f.ctx, outcome.LOPO{LearningOutcome: lo.ID, ProgramOutcome: po.ID, Weight: 10})
		require.NoError(t, err)
		assert.Equal(t, f.course.ID, m.Course)
		assert.Equal(t, "PO1", m.POCode)
		assert.Equal(t, "Design", m.POTitle)

		_, err = repo.CreateLOPO(f.ctx, outcome.LOPO{LearningOutcome: lo.ID, ProgramOutcome: po.ID, Weight: 1})
		assert.Equal(t, outcome.ErrMappingExists, err)

		ms, err := repo.QueryLOPOs(f.ctx, f.course.ID)
		require.NoError(t, err)
		assert.Len(t, ms, 1)
		ms, err = repo.QueryLOPOs(f.ctx, 999)
		require.NoError(t, err)
		assert.Empty(t, ms)
	})

	t.Run("weight constraint", func(t *testing.T) {
		other := f.createLO(t, "LO2")
		_, err := repo.CreateAssessmentLO(f.ctx, outcome.AssessmentLO{Assessment: a.ID, LearningOutcome: other.ID, Weight: 11})
		assert.Error(t, err)
	})

	t.Run("lookups", func(t *testing.T) {
		courseID, err := repo.AssessmentCourse(f.ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, f.course.ID, courseID)
		_, err = repo.AssessmentCourse(f.ctx, 999)
		assert.ErrorIs(t, err, core.ErrNotFound)

		dept, err := repo.CourseDepartment(f.ctx, f.course.ID)
		require.NoError(t, err)
		assert.Equal(t, f.dept.ID, dept)
	})
}

func TestAssessmentRepository(t *testing.T) {
	f, _ := newFixture(t)
	repo := f.repos.Assessments

	a := f.createAssessment(t, "Final", 60)
	a.FeedbackRanges = assessment.FeedbackRanges{
		{MinScore: 80, MaxScore: 100, Feedback: "Great"},
		{MinScore: 0, MaxScore: 79.99, Feedback: "Keep going"},
	}
	_, err := repo.UpdateAssessment(f.ctx, a)
	require.NoError(t, err)
	got, err := repo.GetAssessment(f.ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a, got)

	ok, err := repo.CourseExists(f.ctx, f.course.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	for _, s := range f.students {
		_, err = f.repos.Courses.CreateEnrollment(f.ctx, course.Enrollment{Course: f.course.ID, Student: s.ID})
		require.NoError(t, err)
	}
	ids, err := repo.EnrolledStudents(f.ctx, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{f.students[0].ID, f.students[1].ID}, ids)

	saved, err := repo.SaveGrades(f.ctx, []assessment.Grade{
		{Assessment: a.ID, Student: f.students[0].ID, Score: 40},
		{Assessment: a.ID, Student: f.students[1].ID, Score: 20},
	})
	require.NoError(t, err)
	require.Len(t, saved, 2)

	// saving again replaces the score
	resaved, err := repo.SaveGrades(f.ctx, []assessment.Grade{{Assessment: a.ID, Student: f.students[0].ID, Score: 45}})
	require.NoError(t, err)
	assert.Equal(t, saved[0].ID, resaved[0].ID)

	grades, err := repo.QueryGrades(f.ctx, f.course.ID, f.students[0].ID)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 45.0, grades[0].Score)

	// a failing grade rolls back the whole sheet
	_, err = repo.SaveGrades(f.ctx, []assessment.Grade{
		{Assessment: a.ID, Student: f.students[1].ID, Score: 30},
		{Assessment: 999, Student: f.students[1].ID, Score: 30},
	})
	assert.Error(t, err)
	grades, err = repo.QueryGrades(f.ctx, f.course.ID, f.students[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, grades[0].Score)

	require.NoError(t, repo.DeleteAssessment(f.ctx, a.ID))
	grades, err = repo.QueryGrades(f.ctx, f.course.ID)
	require.NoError(t, err)
	assert.Empty(t, grades, "grades are deleted with their assessment")
}

func TestAssessmentRepository_LockCourse(t *testing.T) {
	f, _ := newFixture(t)
	svc := assessment.NewService(f.repos.Assessments)

	// both fit on their own, only one fits alongside the other
	const n = 2
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Create(f.ctx, assessment.NewAssessment{
				Course:   f.course.ID,
				Title:    "Exam",
				Type:     assessment.TypeFinal,
				MaxScore: 100,
				Weight:   60,
			})
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			var vErr *core.ValidationError
			require.ErrorAs(t, err, &vErr)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	check, err := svc.WeightStatus(f.ctx, f.course.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, check.Total)

	err = f.repos.Assessments.LockCourse(f.ctx, 999, func(assessment.CourseTx) error { return nil })
	assert.ErrorIs(t, err, core.ErrNotFound)

	// fn's error rolls the transaction back
	err = f.repos.Assessments.LockCourse(f.ctx, f.course.ID, func(tx assessment.CourseTx) error {
		if _, err := tx.CreateAssessment(f.ctx, assessment.Assessment{
			Course: f.course.ID, Title: "Quiz", Type: assessment.TypeQuiz, MaxScore: 10, Weight: 10,
		}); err != nil {
			return err
		}
		return core.ErrConflict
	})
	require.ErrorIs(t, err, core.ErrConflict)
	as, err := f.repos.Assessments.QueryAssessments(f.ctx, f.course.ID)
	require.NoError(t, err)
	assert.Len(t, as, 1)
}
