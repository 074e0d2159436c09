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
	"strconv"
	"strings"

	"github.com/scansentry/scansentry/internal/model"
)

// ParsePortSpec expands the wire format from §6 — comma-separated singletons
// and/or N-M ranges — into an explicit port list. It does not validate
// range/dedup rules; that is internal/validate.ValidatePortSet's job.
func ParsePortSpec(spec string) ([]int, error) {
	var ports []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if idx := strings.Index(part, "-"); idx > 0 {
			lo, err := strconv.Atoi(strings.TrimSpace(part[:idx]))
			if err != nil {
				return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "malformed port range: "+part, err)
			}
			hi, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
			if err != nil {
				return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "malformed port range: "+part, err)
			}
			if hi < lo {
				return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "descending port range: "+part, nil)
			}
			for p := lo; p <= hi; p++ {
				ports = append(ports, p)
			}
			continue
		}
		p, err := strconv.Atoi(part)
		if err != nil {
			return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "malformed port: "+part, err)
		}
		ports = append(ports, p)
	}
	if len(ports) == 0 {
		return nil, model.NewError(model.KindInput, model.ReasonInvalidPortSet, "empty port set", nil)
	}
	return ports, nil
}
