package goLearn

import (
	"context"
	"net/http"
	"net/url"
)

const enrollmentsPath = "/enrollments"

// Enroll enrolls the signed-in learner in a course.
func (c *Client) Enroll(ctx context.Context, courseID string) (*Enrollment, error) {
	if courseID == "" {
		return nil, errEmptyID
	}
	var e Enrollment
	if err := c.do(ctx, c.http, http.MethodPost, coursePath(courseID, "enroll"), nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *Client) ListEnrollments(ctx context.Context, opts ListOptions) (*Page[Enrollment], error) {
	var page Page[Enrollment]
	if err := c.do(ctx, c.http, http.MethodGet, enrollmentsPath, opts.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetEnrollment(ctx context.Context, id string) (*Enrollment, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var e Enrollment
	if err := c.do(ctx, c.http, http.MethodGet, enrollmentsPath+"/"+url.PathEscape(id), nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateProgress records lecture activity and returns the enrollment with recomputed
// progress.
func (c *Client) UpdateProgress(ctx context.Context, enrollmentID string, in ProgressUpdate) (*Enrollment, error) {
	if enrollmentID == "" {
		return nil, errEmptyID
	}
	var e Enrollment
	path := enrollmentsPath + "/" + url.PathEscape(enrollmentID) + "/progress"
	if err := c.do(ctx, c.http, http.MethodPatch, path, nil, in, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
