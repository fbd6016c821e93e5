// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest"
	"github.com/Azure/go-autorest/autorest/azure"
)

// ErrorKind classifies errors returned by the Batch service.
type ErrorKind int

const (
	KindOther ErrorKind = iota
	KindPoolExists
	KindJobExists
	KindConflict
	KindNotFound
	KindThrottled
)

func (k ErrorKind) String() string {
	switch k {
	case KindPoolExists:
		return "pool_exists"
	case KindJobExists:
		return "job_exists"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindThrottled:
		return "throttled"
	default:
		return "other"
	}
}

// A ProviderError is an error reported by (or while talking to) the
// Batch service.
type ProviderError struct {
	Kind ErrorKind
	// Service error code, like "PoolExists". Empty if the
	// response had no parseable error body.
	Code string
	// HTTP status, or 0 if no response was received.
	StatusCode int
	// Time before which the service asked us not to retry. Zero
	// unless Kind is KindThrottled.
	RetryAfter time.Time
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the ProviderError in err's chain, or
// KindOther if there is none.
func KindOf(err error) ErrorKind {
	var perr *ProviderError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return KindOther
}

// wrapBatchError converts an error returned by the SDK into a
// *ProviderError. This is the only place service error codes are
// inspected.
func wrapBatchError(err error) error {
	if err == nil {
		return nil
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		return err
	}
	perr = &ProviderError{Kind: KindOther, Err: err}
	var resp *http.Response
	var de autorest.DetailedError
	if errors.As(err, &de) {
		resp = de.Response
		if code, ok := de.StatusCode.(int); ok {
			perr.StatusCode = code
		}
	}
	var rq *azure.RequestError
	if errors.As(err, &rq) {
		if rq.ServiceError != nil {
			perr.Code = rq.ServiceError.Code
		}
		if resp == nil {
			resp = rq.Response
		}
	}
	if resp != nil {
		if perr.StatusCode == 0 {
			perr.StatusCode = resp.StatusCode
		}
		if perr.Code == "" {
			perr.Code = codeFromBody(resp)
		}
	}

	switch {
	case perr.Code == "PoolExists":
		perr.Kind = KindPoolExists
	case perr.Code == "JobExists":
		perr.Kind = KindJobExists
	case perr.StatusCode == http.StatusTooManyRequests,
		resp != nil && len(resp.Header["Retry-After"]) > 0:
		perr.Kind = KindThrottled
		perr.RetryAfter = retryAfter(resp)
	case perr.StatusCode == http.StatusConflict:
		perr.Kind = KindConflict
	case perr.StatusCode == http.StatusNotFound:
		perr.Kind = KindNotFound
	}
	return perr
}

// codeFromBody extracts the "code" field of a Batch error body. The
// Batch service sends "message" as an object, which autorest cannot
// decode into its ServiceError, so the code is often only available
// here. The body is restored for later readers.
func codeFromBody(resp *http.Response) string {
	if resp.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(buf))
	if err != nil {
		return ""
	}
	var body struct {
		Code string `json:"code"`
	}
	if json.Unmarshal(buf, &body) != nil {
		return ""
	}
	return strings.TrimSpace(body.Code)
}

// retryAfter returns the time given by the Retry-After header, which
// may be a timestamp or a number of seconds. Unparseable or missing
// values mean 20 seconds from now.
func retryAfter(resp *http.Response) time.Time {
	if resp == nil || len(resp.Header["Retry-After"]) == 0 {
		return time.Now().Add(20 * time.Second)
	}
	ra := resp.Header["Retry-After"][0]
	if t, err := http.ParseTime(ra); err == nil {
		return t
	}
	if secs, err := strconv.ParseInt(ra, 10, 64); err == nil {
		return time.Now().Add(time.Duration(secs) * time.Second)
	}
	return time.Now().Add(20 * time.Second)
}
