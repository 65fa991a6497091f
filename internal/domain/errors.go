package domain

import "errors"

var (
	// ErrResolutionTimeout is returned when the upstream registry never
	// materializes attestation content within the configured attempt limit
	ErrResolutionTimeout = errors.New("attestation resolution timed out")

	// ErrDecode is returned when an attestation payload does not match the
	// byte layout its schema claims
	ErrDecode = errors.New("attestation payload decode failed")

	// ErrPollerBusy is returned when a poll cycle is requested while another
	// one is already in flight
	ErrPollerBusy = errors.New("poll cycle already in progress")

	// ErrSubscriptionFailed is returned when subscription to registry events fails
	ErrSubscriptionFailed = errors.New("subscription failed")
)
