package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateLoginKey returns the cache key for a candidate's login session (single device).
func (r *CacheKeyStruct) CandidateLoginKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// ExamPayloadKey returns the cache key for an exam's candidate-facing payload.
func (r *CacheKeyStruct) ExamPayloadKey(examID string) string {
	return fmt.Sprintf("exam:%s:payload", examID)
}

// ExamDurationKey returns the cache key for an exam's duration.
func (r *CacheKeyStruct) ExamDurationKey(examID string) string {
	return fmt.Sprintf("exam:%s:duration", examID)
}

// ExamAnswerKey returns the cache key for an exam's answer key.
func (r *CacheKeyStruct) ExamAnswerKey(examID string) string {
	return fmt.Sprintf("exam:%s:key", examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor.
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
