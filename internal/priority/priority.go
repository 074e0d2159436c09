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

// Package priority partitions a requested port set into the four scan
// tiers, preserving numerical order within each tier.
package priority

import (
	"sort"

	"github.com/scansentry/scansentry/internal/model"
)

var criticalPorts = toSet(21, 22, 23, 25, 80, 443, 445, 3306, 3389, 5432, 8080, 8443)

var highPorts = toSet(20, 53, 110, 111, 135, 139, 143, 389, 636, 993, 995, 1433, 1521, 3000, 5000, 5900, 6379, 8000, 8888, 9200, 27017)

var mediumPorts = toSet(25, 69, 88, 119, 123, 137, 138, 161, 162, 179, 194, 389, 427, 465, 500, 512, 513, 514, 515, 587, 631, 873, 902, 989, 990, 1080, 1194, 1723, 2049, 2375, 4443, 5060, 5061, 6000, 6667, 8081, 8834, 9000, 9090, 9092)

func toSet(ports ...int) map[int]bool {
	m := make(map[int]bool, len(ports))
	for _, p := range ports {
		m[p] = true
	}
	return m
}

// Partition splits a validated, deduplicated, ascending port slice into the
// four tiers. Union of tiers equals the input; intersection of any two is
// empty — membership is tested critical, then high, then medium, else low.
func Partition(ports []int) map[model.Tier][]int {
	out := map[model.Tier][]int{
		model.TierCritical: {},
		model.TierHigh:     {},
		model.TierMedium:   {},
		model.TierLow:      {},
	}
	for _, p := range ports {
		switch {
		case criticalPorts[p]:
			out[model.TierCritical] = append(out[model.TierCritical], p)
		case highPorts[p]:
			out[model.TierHigh] = append(out[model.TierHigh], p)
		case mediumPorts[p]:
			out[model.TierMedium] = append(out[model.TierMedium], p)
		default:
			out[model.TierLow] = append(out[model.TierLow], p)
		}
	}
	for _, t := range model.TierOrder {
		sort.Ints(out[t])
	}
	return out
}

// TierFor returns the tier a single port belongs to, with the same
// critical, high, medium precedence as Partition.
func TierFor(port int) model.Tier {
	switch {
	case criticalPorts[port]:
		return model.TierCritical
	case highPorts[port]:
		return model.TierHigh
	case mediumPorts[port]:
		return model.TierMedium
	default:
		return model.TierLow
	}
}
