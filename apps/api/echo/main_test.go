package echoapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/outcome"
	"github.com/trezcool/masomo-obe/core/user"
	logsvc "github.com/trezcool/masomo-obe/services/logger"
	"github.com/trezcool/masomo-obe/storage/database/dbtest"
	sqlxrepos "github.com/trezcool/masomo-obe/storage/database/sqlx"
)

var errMissingTokenData = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*Server
	ctx   context.Context
	repos *sqlxrepos.Repositories
	auth  *TokenAuth

	admin    user.User
	teacher  user.User
	students []user.User
	dept     course.Department
	course   course.Course
}

func setup(t *testing.T) *testApp {
	t.Helper()
	conf := core.NewTestConfig()

	db := dbtest.NewDB(t)
	repos := sqlxrepos.NewRepositories(db)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	assessment.InitValidators(validate, translator)

	lgr := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
	lgr.Enable(false)

	app := &testApp{
		Server: NewServer(ServerDeps{
			Conf:          conf,
			Logger:        lgr,
			Validate:      validate,
			Translator:    translator,
			UserSvc:       user.NewService(repos.Users),
			CourseSvc:     course.NewService(repos.Courses),
			OutcomeSvc:    outcome.NewService(repos.Outcomes),
			AssessmentSvc: assessment.NewService(repos.Assessments),
		}),
		ctx:   context.Background(),
		repos: repos,
		auth:  NewTokenAuth(conf),
	}
	t.Cleanup(func() { _ = app.Shutdown(context.Background()) })

	app.admin = app.createUser(t, "Admin", "admin1", user.RoleAdmin)
	app.teacher = app.createUser(t, "Teacher", "teacher", user.RoleTeacher)
	app.students = []user.User{
		app.createUser(t, "Alice", "alice1", user.RoleStudent),
		app.createUser(t, "Bob", "bobby1", user.RoleStudent),
	}

	var err error
	app.dept, err = repos.Courses.CreateDepartment(app.ctx, course.Department{Name: "Computer Science", Code: "CS"})
	require.NoError(t, err)
	app.course, err = repos.Courses.CreateCourse(app.ctx, course.Course{Department: app.dept.ID, Code: "CS101", Name: "Intro"})
	require.NoError(t, err)
	return app
}

func (app *testApp) createUser(t *testing.T, name, uname string, roles ...string) user.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Second)
	usr := user.User{Name: name, Username: uname, Email: uname + "@example.com", IsActive: true, Roles: roles, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, usr.SetPassword("Pass1234!"))
	usr, err := app.repos.Users.CreateUser(app.ctx, usr)
	require.NoError(t, err)
	return usr
}

func (app *testApp) token(t *testing.T, usr user.User) string {
	t.Helper()
	token, err := app.auth.AccessToken(usr)
	require.NoError(t, err)
	return token
}

// do runs tt against the app and checks the response code, and the body when tt.wantData is set.
func (app *testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	t.Helper()
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, tt, rec)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	if method == "" {
		method = http.MethodGet
	}
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err)
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
