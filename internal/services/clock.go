package services

import (
	"time"

	"github.com/GreenViva/esiriplus-sub002/domain"
)

// SystemClock implements domain.Clock with the real time source.
type SystemClock struct{}

func NewSystemClock() domain.Clock { return SystemClock{} }

func (SystemClock) Now() time.Time { return time.Now() }

// TimerScheduler implements domain.Scheduler on the runtime timer.
type TimerScheduler struct{}

func NewTimerScheduler() domain.Scheduler { return TimerScheduler{} }

func (TimerScheduler) Schedule(delay time.Duration, task func()) {
	time.AfterFunc(delay, task)
}
