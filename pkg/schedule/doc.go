// Package schedule provides schedules for recurring jobs.
//
// This package includes:
//   - Schedule interface for defining when a job runs next
//   - Every() for fixed-interval schedules
//   - Daily() for daily schedules at a specific time
//   - Weekly() for weekly schedules on a specific day and time
//   - Cron() for cron expression-based schedules
//
// Most users should import the root package github.com/jdziat/durajobs
// which re-exports these functions.
package schedule
