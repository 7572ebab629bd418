package obeclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/trezcool/masomo-obe/core"
	"github.com/trezcool/masomo-obe/core/assessment"
	"github.com/trezcool/masomo-obe/core/course"
	"github.com/trezcool/masomo-obe/core/gradebook"
	"github.com/trezcool/masomo-obe/core/mapping"
	"github.com/trezcool/masomo-obe/core/outcome"
)

var (
	_ mapping.Backend          = (*Client)(nil)
	_ gradebook.Backend        = (*Client)(nil)
	_ course.EnrollmentBackend = (*Client)(nil)
)

func itemPath(resource string, id int) string {
	return resource + "/" + strconv.Itoa(id) + "/"
}

func listPath(resource string) string { return resource + "/" }

// Mappings

// ListMappings fetches the mappings of a course. A body that is not a JSON array fails with
// core.ErrMalformedResponse; records that cannot be decoded come back as zero mappings of kind.
func (c *Client) ListMappings(ctx context.Context, kind outcome.Kind, courseID int) ([]outcome.Mapping, error) {
	var raw json.RawMessage
	q := url.Values{"courseId": {strconv.Itoa(courseID)}}
	if err := c.do(ctx, http.MethodGet, listPath(kind.Resource()), q, nil, &raw); err != nil {
		return nil, err
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(core.ErrMalformedResponse, "%s list", kind)
	}

	ms := make([]outcome.Mapping, 0, len(items))
	for _, item := range items {
		ms = append(ms, decodeMapping(kind, item))
	}
	return ms, nil
}

func decodeMapping(kind outcome.Kind, data []byte) outcome.Mapping {
	switch kind {
	case outcome.KindAssessmentLO:
		var m outcome.AssessmentLO
		if err := json.Unmarshal(data, &m); err != nil {
			return outcome.Mapping{Kind: kind}
		}
		return m.Mapping()
	case outcome.KindLOPO:
		var m outcome.LOPO
		if err := json.Unmarshal(data, &m); err != nil {
			return outcome.Mapping{Kind: kind}
		}
		return m.Mapping()
	}
	return outcome.Mapping{Kind: kind}
}

func (c *Client) CreateMapping(ctx context.Context, nm outcome.NewMapping) (outcome.Mapping, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, listPath(nm.Kind.Resource()), nil, nm.Payload(), &raw); err != nil {
		return outcome.Mapping{}, err
	}
	return decodeMapping(nm.Kind, raw), nil
}

func (c *Client) UpdateMapping(ctx context.Context, kind outcome.Kind, id int, w outcome.ContributionWeight) (outcome.Mapping, error) {
	var raw json.RawMessage
	body := outcome.UpdateMappingWeight{Weight: w}
	if err := c.do(ctx, http.MethodPatch, itemPath(kind.Resource(), id), nil, body, &raw); err != nil {
		return outcome.Mapping{}, err
	}
	return decodeMapping(kind, raw), nil
}

func (c *Client) DeleteMapping(ctx context.Context, kind outcome.Kind, id int) error {
	return c.do(ctx, http.MethodDelete, itemPath(kind.Resource(), id), nil, nil, nil)
}

// Assessments & grades

func (c *Client) ListAssessments(ctx context.Context, courseID int) ([]assessment.Assessment, error) {
	var as []assessment.Assessment
	q := url.Values{"course": {strconv.Itoa(courseID)}}
	if err := c.do(ctx, http.MethodGet, listPath("assessments"), q, nil, &as); err != nil {
		return nil, err
	}
	return as, nil
}

func (c *Client) GetAssessment(ctx context.Context, id int) (assessment.Assessment, error) {
	var a assessment.Assessment
	err := c.do(ctx, http.MethodGet, itemPath("assessments", id), nil, nil, &a)
	return a, err
}

func (c *Client) UpdateAssessment(ctx context.Context, id int, ua assessment.UpdateAssessment) (assessment.Assessment, error) {
	var a assessment.Assessment
	err := c.do(ctx, http.MethodPatch, itemPath("assessments", id), nil, ua, &a)
	return a, err
}

func (c *Client) SaveGrades(ctx context.Context, sg assessment.SaveGrades) ([]assessment.Grade, error) {
	var grades []assessment.Grade
	if err := c.do(ctx, http.MethodPost, listPath("grades"), nil, sg, &grades); err != nil {
		return nil, err
	}
	return grades, nil
}

// Enrollments

func (c *Client) ListEnrollments(ctx context.Context, courseID int) ([]course.Enrollment, error) {
	var es []course.Enrollment
	q := url.Values{"course": {strconv.Itoa(courseID)}}
	if err := c.do(ctx, http.MethodGet, listPath("enrollments"), q, nil, &es); err != nil {
		return nil, err
	}
	return es, nil
}

func (c *Client) Enroll(ctx context.Context, ne course.NewEnrollment) (course.Enrollment, error) {
	var e course.Enrollment
	err := c.do(ctx, http.MethodPost, listPath("enrollments"), nil, ne, &e)
	return e, err
}

func (c *Client) Unenroll(ctx context.Context, enrollmentID int) error {
	return c.do(ctx, http.MethodDelete, itemPath("enrollments", enrollmentID), nil, nil, nil)
}

// Courses & reports

func (c *Client) ListCourses(ctx context.Context) ([]course.Course, error) {
	var cs []course.Course
	if err := c.do(ctx, http.MethodGet, listPath("courses"), nil, nil, &cs); err != nil {
		return nil, err
	}
	return cs, nil
}

// Achievements returns the course's outcome report, for one student when studentID is set.
func (c *Client) Achievements(ctx context.Context, courseID, studentID int) (outcome.Report, error) {
	var r outcome.Report
	var q url.Values
	if studentID > 0 {
		q = url.Values{"student": {strconv.Itoa(studentID)}}
	}
	err := c.do(ctx, http.MethodGet, itemPath("courses", courseID)+"achievements/", q, nil, &r)
	return r, err
}
