// Copyright 2023-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package picker

import (
	"math/rand/v2"
	"sync/atomic"

	"github.com/bufbuild/nsenv/resolver"
)

// NewRoundRobin creates a picker that picks addresses in sequential order
// across calls. To mitigate the risk of a "thundering herd" when many
// processes start at once, the sequence starts at a random position.
func NewRoundRobin() Picker {
	picker := &roundRobin{}
	picker.counter.Store(rand.Int64()) //nolint:gosec // does not need to be cryptographically secure
	return picker
}

type roundRobin struct {
	// +checkatomic
	counter atomic.Int64
}

func (r *roundRobin) Pick(addresses []resolver.Address) (resolver.Address, error) {
	if len(addresses) == 0 {
		return resolver.Address{}, ErrNoAddresses
	}
	return addresses[uint64(r.counter.Add(1))%uint64(len(addresses))], nil
}
