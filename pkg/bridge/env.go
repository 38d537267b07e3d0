/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package bridge

import (
	"os"
	"strings"
)

var proxyVars = []string{
	"HTTP_PROXY", "HTTPS_PROXY", "ALL_PROXY", "NO_PROXY",
	"http_proxy", "https_proxy", "all_proxy", "no_proxy",
}

// CleanEnv returns env without proxy variables. The bridge talks to a local
// server and a configured proxy breaks it.
func CleanEnv(env []string) []string {
	out := make([]string, 0, len(env))

	for _, kv := range env {
		if !isProxyVar(kv) {
			out = append(out, kv)
		}
	}

	return out
}

// Environ is CleanEnv applied to the current process environment.
func Environ() []string {
	return CleanEnv(os.Environ())
}

func isProxyVar(kv string) bool {
	for _, name := range proxyVars {
		if strings.HasPrefix(kv, name+"=") {
			return true
		}
	}

	return false
}
