package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/pipeworks_backend/config"
	"github.com/ttacon/libphonenumber"
)

var ErrLockNotObtained = errors.New("resource is busy, try again")

// PhoneRegion is the default region for numbers written without a country code.
func PhoneRegion() string {
	if v := strings.TrimSpace(os.Getenv("PHONE_REGION")); v != "" {
		return strings.ToUpper(v)
	}
	return "PK"
}

// NormalizePhoneNumber validates and returns the E.164 form.
func NormalizePhoneNumber(phoneNumber, countryCode string) (string, error) {
	p, err := libphonenumber.Parse(phoneNumber, countryCode)
	if err != nil {
		return "", err
	}
	if !libphonenumber.IsValidNumber(p) {
		return "", fmt.Errorf("phone number is not valid")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}

func ProcessValidationErrors(err error) map[string]string {
	errorResponse := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return errorResponse
	}
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

// WithLock runs fn while holding a redis lock on key. Without Redis the call
// runs unlocked; row locks in the database still serialize the writes.
func WithLock(ctx context.Context, key string, moduleName string, functionName string, fn func() error) error {
	locker := config.GetRedisLock()
	if locker == nil {
		return fn()
	}
	logger := config.GetLogger()

	lock, err := locker.Obtain(ctx, config.RedisKey("lock:"+key), 30*time.Second, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 30),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		config.LogError(logger, moduleName, functionName, "could not obtain lock", key, err)
		return ErrLockNotObtained
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "error obtaining lock", key, err)
		return err
	}
	defer func() {
		_ = lock.Release(context.Background())
	}()

	return fn()
}
