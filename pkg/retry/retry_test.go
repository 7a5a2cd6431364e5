package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(maxRetries int) *Config {
	return &Config{
		MaxRetries:      maxRetries,
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2.0,
		JitterFactor:    0,
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d, want 5", config.MaxRetries)
	}
	if config.InitialInterval != 1*time.Second {
		t.Errorf("InitialInterval = %v, want 1s", config.InitialInterval)
	}
	if config.MaxInterval != 30*time.Second {
		t.Errorf("MaxInterval = %v, want 30s", config.MaxInterval)
	}
	if config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0", config.Multiplier)
	}
	if config.JitterFactor != 0.1 {
		t.Errorf("JitterFactor = %f, want 0.1", config.JitterFactor)
	}
}

func TestNew_WithNilConfig(t *testing.T) {
	retrier := New(nil)
	if retrier == nil {
		t.Fatal("New(nil) returned nil")
	}
	if retrier.config.InitialInterval != 1*time.Second {
		t.Errorf("Default InitialInterval = %v, want 1s", retrier.config.InitialInterval)
	}
}

func TestNew_WithZeroValues(t *testing.T) {
	retrier := New(&Config{})

	if retrier.config.InitialInterval != 1*time.Second {
		t.Errorf("InitialInterval = %v, want 1s (default)", retrier.config.InitialInterval)
	}
	if retrier.config.MaxInterval != 30*time.Second {
		t.Errorf("MaxInterval = %v, want 30s (default)", retrier.config.MaxInterval)
	}
	if retrier.config.Multiplier != 2.0 {
		t.Errorf("Multiplier = %f, want 2.0 (default)", retrier.config.Multiplier)
	}
}

func TestRetrier_Do_Success(t *testing.T) {
	retrier := New(fastConfig(3))

	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_Do_SuccessAfterRetries(t *testing.T) {
	retrier := New(fastConfig(5))

	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetrier_Do_MaxAttemptsExceeded(t *testing.T) {
	retrier := New(fastConfig(3))

	attempts := 0
	persistentErr := errors.New("persistent error")
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return persistentErr
	})

	if !errors.Is(result.Err, ErrMaxAttemptsExceeded) {
		t.Errorf("Err = %v, want ErrMaxAttemptsExceeded", result.Err)
	}
	if !errors.Is(result.LastError, persistentErr) {
		t.Errorf("LastError = %v, want %v", result.LastError, persistentErr)
	}

	// Initial attempt + 3 retries = 4 total
	if result.Attempts != 4 {
		t.Errorf("Attempts = %d, want 4", result.Attempts)
	}
	if attempts != 4 {
		t.Errorf("Operation called %d times, want 4", attempts)
	}
}

func TestRetrier_Do_PermanentError(t *testing.T) {
	retrier := New(fastConfig(5))

	attempts := 0
	permErr := errors.New("permanent error")
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return Permanent(permErr)
	})

	if !errors.Is(result.Err, permErr) {
		t.Errorf("Err = %v, want %v", result.Err, permErr)
	}

	// Stops immediately, no retries
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_Do_ContextCanceled(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      10,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0,
	})

	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	result := retrier.Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("error")
	})

	if !errors.Is(result.Err, ErrContextCanceled) {
		t.Errorf("Err = %v, want ErrContextCanceled", result.Err)
	}
	if result.Attempts < 2 {
		t.Errorf("Attempts = %d, want >= 2", result.Attempts)
	}
}

func TestRetrier_Do_ContextTimeout(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      10,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	result := retrier.Do(ctx, func(ctx context.Context) error {
		return errors.New("error")
	})

	if !errors.Is(result.Err, ErrContextCanceled) {
		t.Errorf("Err = %v, want ErrContextCanceled", result.Err)
	}
}

func TestRetrier_DoWithCallback(t *testing.T) {
	retrier := New(fastConfig(3))

	attempts := 0
	callbackCalls := 0
	result := retrier.DoWithCallback(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 3 {
			return errors.New("error")
		}
		return nil
	}, func(retryNum int, err error, wait time.Duration) {
		callbackCalls++
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}

	// Callback fires before retries 2 and 3
	if callbackCalls != 2 {
		t.Errorf("Callback called %d times, want 2", callbackCalls)
	}
}

func TestInterval_ExponentialBackoff(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0, // no jitter for predictable testing
	})

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped at 30s
		{6, 30 * time.Second},
	}

	for _, tt := range tests {
		got := retrier.interval(tt.attempt)
		if got != tt.expected {
			t.Errorf("interval(%d) = %v, want %v", tt.attempt, got, tt.expected)
		}
	}
}

func TestInterval_WithJitter(t *testing.T) {
	retrier := New(&Config{
		MaxRetries:      5,
		InitialInterval: 1 * time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	})

	baseInterval := 1 * time.Second
	minExpected := time.Duration(float64(baseInterval) * 0.9)
	maxExpected := time.Duration(float64(baseInterval) * 1.1)

	results := make(map[time.Duration]bool)
	for i := 0; i < 100; i++ {
		interval := retrier.interval(0)
		results[interval] = true

		if interval < minExpected || interval > maxExpected {
			t.Errorf("interval(0) = %v, want between %v and %v", interval, minExpected, maxExpected)
		}
	}

	if len(results) < 3 {
		t.Errorf("Expected more variation with jitter, got %d unique values", len(results))
	}
}

func TestPermanent(t *testing.T) {
	err := errors.New("test error")
	permErr := Permanent(err)

	var pe *PermanentError
	if !errors.As(permErr, &pe) {
		t.Fatal("Permanent error should be PermanentError")
	}
	if pe.Error() != err.Error() {
		t.Errorf("PermanentError.Error() = %v, want %v", pe.Error(), err.Error())
	}
	if !errors.Is(pe.Unwrap(), err) {
		t.Error("PermanentError.Unwrap() should return original error")
	}

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should return nil")
	}
}

func TestDo_ConvenienceFunction(t *testing.T) {
	attempts := 0
	result := Do(context.Background(), fastConfig(2), func(ctx context.Context) error {
		attempts++
		return nil
	})

	if result.Err != nil {
		t.Errorf("Err = %v, want nil", result.Err)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}

func TestRetrier_NoRetries(t *testing.T) {
	retrier := New(fastConfig(0))

	attempts := 0
	result := retrier.Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("error")
	})

	if !errors.Is(result.Err, ErrMaxAttemptsExceeded) {
		t.Errorf("Err = %v, want ErrMaxAttemptsExceeded", result.Err)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
	if attempts != 1 {
		t.Errorf("Operation called %d times, want 1", attempts)
	}
}
