package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Validate checks the structural validity of a Config. It reports every
// problem found, joined, so an operator can fix the file in one pass.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.AccessServer) == "" {
		errs = append(errs, errors.New("accessServer is required"))
	}
	errs = append(errs, validatePort(cfg.Port)...)
	if strings.TrimSpace(cfg.UserID) == "" {
		errs = append(errs, errors.New("userId is required"))
	}
	if cfg.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}

	errs = append(errs, validateSubscriptions(cfg.Subscriptions)...)

	return errors.Join(errs...)
}

func validatePort(port string) []error {
	if strings.TrimSpace(port) == "" {
		return []error{errors.New("port is required")}
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return []error{fmt.Errorf("port %q is not a number", port)}
	}
	if n < 1 || n > 65535 {
		return []error{fmt.Errorf("port %d out of range", n)}
	}
	return nil
}

// validateSubscriptions enforces a non-empty, unique identity per
// subscription. Duplicates are rejected rather than letting the later entry
// silently replace the earlier one.
func validateSubscriptions(subs []Subscription) []error {
	var errs []error
	seen := make(map[string]int, len(subs))

	for i, s := range subs {
		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, fmt.Errorf("subscriptions[%d]: subscriptionId is required", i))
			continue
		}
		if first, dup := seen[s.ID]; dup {
			errs = append(errs, fmt.Errorf(
				"subscriptions[%d]: duplicate subscriptionId %q (first at subscriptions[%d])",
				i, s.ID, first,
			))
			continue
		}
		seen[s.ID] = i
	}

	return errs
}
