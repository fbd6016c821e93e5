// Copyright (C) The Arvados Authors. All rights reserved.
//
// SPDX-License-Identifier: AGPL-3.0

package config

import (
	"encoding/json"
	"time"

	check "gopkg.in/check.v1"
)

var _ = check.Suite(&DurationSuite{})

type DurationSuite struct{}

func (s *DurationSuite) TestMarshalJSON(c *check.C) {
	var d struct {
		D Duration
	}
	err := json.Unmarshal([]byte(`{"D":"1.234s"}`), &d)
	c.Check(err, check.IsNil)
	c.Check(d.D, check.Equals, Duration(time.Second+234*time.Millisecond))
	buf, err := json.Marshal(d)
	c.Check(err, check.IsNil)
	c.Check(string(buf), check.Equals, `{"D":"1.234s"}`)

	for _, trial := range []struct {
		seconds int
		out     string
	}{
		{30, "30s"},
		{60, "1m"},
		{120, "2m"},
		{150, "2m30s"},
		{3600, "1h"},
		{7201, "2h0m1s"},
		{360600, "100h10m"},
		{360610, "100h10m10s"},
	} {
		buf, err := json.Marshal(Duration(time.Duration(trial.seconds) * time.Second))
		c.Check(err, check.IsNil)
		c.Check(string(buf), check.Equals, `"`+trial.out+`"`)
	}
}

func (s *DurationSuite) TestUnmarshalJSON(c *check.C) {
	var d struct {
		D Duration
	}
	c.Check(json.Unmarshal([]byte(`{"D":"2h"}`), &d), check.IsNil)
	c.Check(d.D.Duration(), check.Equals, 2*time.Hour)
	c.Check(json.Unmarshal([]byte(`{"D":7200}`), &d), check.ErrorMatches, `duration must be given as a string.*`)
	c.Check(json.Unmarshal([]byte(`{"D":"two hours"}`), &d), check.NotNil)
}
