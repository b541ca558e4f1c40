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

package resolver

import (
	"net"
	"strconv"
)

// WithDefaultPort decorates the given receiver so that every address it
// receives has a port: addresses that lack one get the given port.
func WithDefaultPort(receiver Receiver, port int) Receiver {
	return &defaultPortReceiver{rcvr: receiver, port: strconv.Itoa(port)}
}

// CompletePorts returns the given addresses, with the given port applied
// to any address that does not have one. The input slice is not modified.
func CompletePorts(addresses []Address, port int) []Address {
	return completePorts(addresses, strconv.Itoa(port))
}

type defaultPortReceiver struct {
	rcvr Receiver
	port string
}

func (d *defaultPortReceiver) OnResolve(addresses []Address) {
	d.rcvr.OnResolve(completePorts(addresses, d.port))
}

func (d *defaultPortReceiver) OnResolveError(err error) {
	d.rcvr.OnResolveError(err)
}

func completePorts(addresses []Address, port string) []Address {
	completed := make([]Address, len(addresses))
	for i, address := range addresses {
		completed[i] = address
		if _, _, err := net.SplitHostPort(address.HostPort); err != nil {
			completed[i].HostPort = net.JoinHostPort(address.HostPort, port)
		}
	}
	return completed
}
