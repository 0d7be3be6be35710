package goLearn

import (
	"context"
	"errors"
	"net/http"
	"net/url"
)

const (
	coursesPath           = "/courses"
	instructorCoursesPath = "/instructor/courses"
)

func coursePath(id string, suffix ...string) string {
	p := coursesPath + "/" + url.PathEscape(id)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

var errEmptyID = errors.New("empty id")

// ListCourses returns one page of the public catalogue.
func (c *Client) ListCourses(ctx context.Context, q CourseQuery) (*Page[Course], error) {
	var page Page[Course]
	if err := c.do(ctx, c.http, http.MethodGet, coursesPath, q.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetCourse returns a course with its curriculum.
func (c *Client) GetCourse(ctx context.Context, id string) (*Course, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var course Course
	if err := c.do(ctx, c.http, http.MethodGet, coursePath(id), nil, nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// CreateCourse creates a draft course owned by the signed-in instructor.
func (c *Client) CreateCourse(ctx context.Context, in CourseInput) (*Course, error) {
	var course Course
	if err := c.do(ctx, c.http, http.MethodPost, coursesPath, nil, in, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// UpdateCourse patches the fields set in in.
func (c *Client) UpdateCourse(ctx context.Context, id string, in CourseInput) (*Course, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var course Course
	if err := c.do(ctx, c.http, http.MethodPatch, coursePath(id), nil, in, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	if id == "" {
		return errEmptyID
	}
	return c.do(ctx, c.http, http.MethodDelete, coursePath(id), nil, nil, nil)
}

// PublishCourse moves a draft to the published state.
func (c *Client) PublishCourse(ctx context.Context, id string) (*Course, error) {
	if id == "" {
		return nil, errEmptyID
	}
	var course Course
	if err := c.do(ctx, c.http, http.MethodPost, coursePath(id, "publish"), nil, nil, &course); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListInstructorCourses returns the signed-in instructor's courses in every state.
func (c *Client) ListInstructorCourses(ctx context.Context, opts ListOptions) (*Page[Course], error) {
	var page Page[Course]
	if err := c.do(ctx, c.http, http.MethodGet, instructorCoursesPath, opts.values(), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}
