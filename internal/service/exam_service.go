package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/invigo/invigo-backend/internal/config"
	"github.com/invigo/invigo-backend/internal/model"
	"github.com/invigo/invigo-backend/internal/repository"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNoQuestions   = errors.New("exam has no questions, cannot warm cache")
	ErrPayloadNotHot = errors.New("exam payload not cached")
)

// ExamService serves candidate-facing exam payloads and the grading answer
// key, both cached in Redis so the hot path never touches PostgreSQL.
type ExamService struct {
	examRepo *repository.ExamRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examRepo *repository.ExamRepository, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examRepo: examRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "exam_service").Logger(),
	}
}

// GetByID retrieves an exam by its UUID.
func (s *ExamService) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return s.examRepo.Get(ctx, id)
}

// WarmExamCache loads an exam's payload, duration and answer key from
// PostgreSQL into Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.Exam) error {
	questions, err := s.examRepo.ListQuestions(ctx, exam.ID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoQuestions
	}

	// Candidate-facing payload never carries the correct option.
	candidateQuestions := make([]model.QuestionForCandidate, len(questions))
	for i, q := range questions {
		candidateQuestions[i] = model.QuestionForCandidate{
			ID:           q.ID,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			OrderNum:     q.OrderNum,
		}
	}

	payload := model.ExamPayload{
		ExamID:    exam.ID,
		Title:     exam.Title,
		Duration:  exam.DurationMinutes,
		Questions: candidateQuestions,
	}

	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	answerKey := make(map[string]interface{}, len(questions))
	for _, q := range questions {
		answerKey[q.ID.String()] = q.CorrectOption
	}

	examID := exam.ID.String()
	pipe := s.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.ExamPayloadKey(examID), payloadJSON, 0)
	pipe.Set(ctx, config.CacheKey.ExamDurationKey(examID), exam.DurationMinutes, 0)
	pipe.Del(ctx, config.CacheKey.ExamAnswerKey(examID))
	pipe.HSet(ctx, config.CacheKey.ExamAnswerKey(examID), answerKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam_id", examID).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every open exam into Redis on startup so the first
// candidates never race a lazy load.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.examRepo.ListRunning(ctx)
	if err != nil {
		return fmt.Errorf("list running exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No open exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming open exams...")

	warmed := 0
	for i := range exams {
		if err := s.WarmExamCache(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}

// GetExamPayload retrieves the cached candidate payload from Redis.
func (s *ExamService) GetExamPayload(ctx context.Context, examID uuid.UUID) (*model.ExamPayload, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(examID.String())).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrPayloadNotHot
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// AnswerKey retrieves the answer key from Redis for in-memory grading,
// falling back to PostgreSQL (and re-warming) on a cold cache.
func (s *ExamService) AnswerKey(ctx context.Context, examID uuid.UUID) (map[string]string, error) {
	key, err := s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(key) > 0 {
		return key, nil
	}

	// Cold cache. Rebuild from the database so grading never silently
	// scores against an empty key.
	exam, err := s.examRepo.Get(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("get exam: %w", err)
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		return nil, err
	}

	key, err = s.rdb.HGetAll(ctx, config.CacheKey.ExamAnswerKey(examID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("get answer key: %w", err)
	}
	if len(key) == 0 {
		return nil, ErrNoQuestions
	}
	return key, nil
}
