// Copyright 2025 walteh LLC
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

/*
Package config loads and validates convrt settings.

	            +-------------+
	            |   Config    |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+ +-----+----+ +-----+----+
	|   YAML   | |   JSON   | |   HCL    |
	|  Parser  | |  Parser  | |  Parser  |
	+----------+ +----------+ +----------+

🎯 Purpose:
- Picks a parser by file extension
- Rejects unknown keys in every format
- Fills defaults for staging, history and remote credential files

🔄 Flow:
1. Find looks for .convrt.yaml, .convrt.yml, .convrt.json or .convrt.hcl
2. Load reads the file and parses it with the matching Parser
3. Validate fills defaults and rejects unknown providers

A missing config file is not an error for the CLI: it uses Default().

HCL files may reference the environment through the env object:

	staging_dir = "${env.HOME}/.cache/convrt"

	remote {
	  provider    = "gdrive"
	  interactive = false
	}
*/
package config
