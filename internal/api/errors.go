// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"errors"
	"net/http"

	"github.com/scansentry/scansentry/internal/model"
)

// httpStatus maps a model.Error's Kind to the §7 HTTP status. Unknown kinds
// fall back to 500 rather than leaking an ambiguous response.
func httpStatus(err error) int {
	var e *model.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case model.KindInput, model.KindResolution:
		return http.StatusBadRequest
	case model.KindAuth:
		return http.StatusUnauthorized
	case model.KindPolicy:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// wsControlFrame maps a model.Error to the WebSocket control-frame kind
// named in §6.
func wsControlFrame(err error) string {
	var e *model.Error
	if !errors.As(err, &e) {
		return "error"
	}
	switch e.Reason {
	case model.ReasonDenied:
		return "denied"
	case model.ReasonRateLimited, model.ReasonOnCooldown, model.ReasonExceedsConcurrency:
		return "rate_limit"
	case model.ReasonUnauthorized:
		return "auth_error"
	default:
		return "error"
	}
}
