package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shop-service/internal/entity"
	"shop-service/internal/repository"
)

// CourseService takes course enrollment applications. Applications get
// their own daily number sequence (KURS prefix), separate from orders.
type CourseService struct {
	store repository.Store
}

func NewCourseService(store repository.Store) *CourseService {
	return &CourseService{store: store}
}

type ApplyRequest struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	CourseName string `json:"course_name"`
}

func (r *ApplyRequest) validate() error {
	if r.FullName == "" {
		return RequestError("full_name is required")
	}
	if r.Phone == "" {
		return RequestError("phone is required")
	}
	if r.CourseName == "" {
		return RequestError("course_name is required")
	}
	return nil
}

func (s *CourseService) Apply(ctx context.Context, req *ApplyRequest) (*entity.Application, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	app := &entity.Application{
		ID:         uuid.NewString(),
		FullName:   req.FullName,
		Phone:      req.Phone,
		CourseName: req.CourseName,
		CreatedAt:  time.Now(),
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		logger.Error().Err(err).Msg("failed to store course application")
		return nil, err
	}

	logger.Info().Str("application_number", app.Number).Str("course", app.CourseName).Msg("course application received")
	return app, nil
}
