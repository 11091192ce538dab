package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mia-platform/crud-service-sub002/internal/pkg/logger"
)

// ErrOpen은 breaker가 열려 있어 호출이 차단되었을 때 반환됩니다
var ErrOpen = errors.New("circuit breaker is open")

// State는 breaker의 상태입니다
type State int

const (
	// StateClosed는 호출이 정상 통과하는 상태입니다
	StateClosed State = iota
	// StateOpen은 호출이 차단된 상태입니다
	StateOpen
	// StateHalfOpen은 복구 여부를 탐침하는 상태입니다
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Settings는 breaker 동작 설정입니다. 영 값은 합리적인 기본값으로
// 대체됩니다.
type Settings struct {
	// FailureThreshold번 연속 실패하면 breaker가 열립니다
	FailureThreshold int
	// OpenTimeout 경과 후 half-open으로 전환해 호출 하나를 통과시킵니다
	OpenTimeout time.Duration
}

// Breaker는 연속 실패가 임계치를 넘으면 하위 시스템 호출을 일정 시간
// 차단합니다. 이벤트 발행처럼 쓰기 경로에 부수적인 호출이 죽은 브로커
// 때문에 매 요청마다 타임아웃을 기다리는 것을 막습니다.
type Breaker struct {
	name      string
	threshold int
	timeout   time.Duration

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
}

// New는 새로운 Breaker를 생성합니다
func New(name string, settings Settings) *Breaker {
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = 5
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 30 * time.Second
	}
	return &Breaker{
		name:      name,
		threshold: settings.FailureThreshold,
		timeout:   settings.OpenTimeout,
	}
}

// Do는 fn을 breaker로 감싸 실행합니다. breaker가 열려 있으면 fn을
// 호출하지 않고 ErrOpen을 반환합니다. nil 수신자는 fn을 그대로
// 실행합니다.
func (b *Breaker) Do(ctx context.Context, fn func() error) error {
	if b == nil {
		return fn()
	}

	if err := b.allow(); err != nil {
		return err
	}

	err := fn()
	b.record(ctx, err == nil)
	return err
}

// State는 현재 상태를 반환합니다
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentState(time.Now())
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentState(time.Now()) {
	case StateOpen:
		return ErrOpen
	default:
		return nil
	}
}

func (b *Breaker) record(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state := b.currentState(now)

	if success {
		b.failures = 0
		if state == StateHalfOpen {
			b.transition(ctx, StateClosed, now)
		}
		return
	}

	b.failures++
	if state == StateHalfOpen || b.failures >= b.threshold {
		b.transition(ctx, StateOpen, now)
	}
}

// currentState는 open 타임아웃 경과 시 half-open 전환을 반영한 상태를
// 반환합니다. 호출자가 잠금을 보유해야 합니다.
func (b *Breaker) currentState(now time.Time) State {
	if b.state == StateOpen && now.Sub(b.openedAt) >= b.timeout {
		b.state = StateHalfOpen
	}
	return b.state
}

func (b *Breaker) transition(ctx context.Context, to State, now time.Time) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if to == StateOpen {
		b.openedAt = now
		b.failures = 0
	}

	logger.Warn(ctx, "circuit breaker state changed",
		logger.Field("name", b.name),
		logger.Field("from", from.String()),
		logger.Field("to", to.String()),
	)
}
