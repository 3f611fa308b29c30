package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionStartKey returns the cache key for a candidate's assessment session start
func (r *CacheKeyStruct) CandidateSessionStartKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:session_start", candidateID, assessmentID)
}

// AssessmentPayloadKey returns the cache key for an assessment's candidate-facing payload
func (r *CacheKeyStruct) AssessmentPayloadKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:payload", assessmentID)
}

// AssessmentDurationKey returns the cache key for an assessment's duration
func (r *CacheKeyStruct) AssessmentDurationKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:duration", assessmentID)
}

// CandidateActiveAssessmentKey returns the cache key for a candidate's currently active assessment
func (r *CacheKeyStruct) CandidateActiveAssessmentKey(candidateID int) string {
	return fmt.Sprintf("candidate:%d:active_assessment", candidateID)
}

// AssessmentMonitorChannel returns the Redis PubSub channel name for an assessment monitor
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
