package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// RevokedTokenKey marks an access token id as logged out until it would have expired.
func (r *CacheKeyStruct) RevokedTokenKey(tokenID string) string {
	return fmt.Sprintf("auth:revoked:%s", tokenID)
}

// PasswordResetKey maps a reset token to the user id it was issued for.
func (r *CacheKeyStruct) PasswordResetKey(token string) string {
	return fmt.Sprintf("auth:reset:%s", token)
}

// ExamPaperVersionKey counts paper invalidations of an exam.
func (r *CacheKeyStruct) ExamPaperVersionKey(examID string) string {
	return fmt.Sprintf("exam:%s:paper:version", examID)
}

// ExamPaperKey holds the student-facing question list of an exam, in creation
// order, as built at the given paper version.
func (r *CacheKeyStruct) ExamPaperKey(examID string, version int64) string {
	return fmt.Sprintf("exam:%s:paper:v%d", examID, version)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

var CacheKey = NewCacheKeyStruct()
