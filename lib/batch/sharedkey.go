// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package batch

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Azure/go-autorest/autorest"
	"github.com/ragpan29/Azure/lib/config"
)

// sharedKeyAuthorizer signs Batch requests with the account key
// ("SharedKey" scheme).
type sharedKeyAuthorizer struct {
	account string
	key     []byte
	now     func() time.Time
}

func newSharedKeyAuthorizer(account, key string) (*sharedKeyAuthorizer, error) {
	buf, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return nil, fmt.Errorf("%w: _BATCH_ACCOUNT_KEY is not valid base64: %s", config.ErrInvalid, err)
	}
	return &sharedKeyAuthorizer{account: account, key: buf, now: time.Now}, nil
}

// WithAuthorization implements autorest.Authorizer.
func (a *sharedKeyAuthorizer) WithAuthorization() autorest.PrepareDecorator {
	return func(p autorest.Preparer) autorest.Preparer {
		return autorest.PreparerFunc(func(r *http.Request) (*http.Request, error) {
			r, err := p.Prepare(r)
			if err != nil {
				return r, err
			}
			if r.Header.Get("ocp-date") == "" {
				r.Header.Set("ocp-date", a.now().UTC().Format(http.TimeFormat))
			}
			r.Header.Set("Authorization", "SharedKey "+a.account+":"+a.sign(stringToSign(r, a.account)))
			return r, nil
		})
	}
}

func (a *sharedKeyAuthorizer) sign(s string) string {
	mac := hmac.New(sha256.New, a.key)
	mac.Write([]byte(s))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Standard headers included in the string to sign, in order.
var signedHeaders = []string{
	"Content-Encoding",
	"Content-Language",
	"Content-Length",
	"Content-MD5",
	"Content-Type",
	"Date",
	"If-Modified-Since",
	"If-Match",
	"If-None-Match",
	"If-Unmodified-Since",
	"Range",
}

func stringToSign(r *http.Request, account string) string {
	var b strings.Builder
	b.WriteString(r.Method + "\n")
	for _, h := range signedHeaders {
		v := r.Header.Get(h)
		if h == "Content-Length" {
			v = ""
			if r.ContentLength > 0 {
				v = strconv.FormatInt(r.ContentLength, 10)
			}
		}
		b.WriteString(v + "\n")
	}

	var ocp []string
	for name := range r.Header {
		if lower := strings.ToLower(name); strings.HasPrefix(lower, "ocp-") {
			ocp = append(ocp, lower)
		}
	}
	sort.Strings(ocp)
	for _, name := range ocp {
		b.WriteString(name + ":" + r.Header.Get(name) + "\n")
	}

	b.WriteString("/" + account + r.URL.EscapedPath())
	query := map[string][]string{}
	var names []string
	for name, values := range r.URL.Query() {
		lower := strings.ToLower(name)
		if _, ok := query[lower]; !ok {
			names = append(names, lower)
		}
		query[lower] = append(query[lower], values...)
	}
	sort.Strings(names)
	for _, name := range names {
		b.WriteString("\n" + name + ":" + strings.Join(query[name], ","))
	}
	return b.String()
}
