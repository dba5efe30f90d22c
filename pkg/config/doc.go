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
Package config loads the project configuration and the processor pipeline.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +------------+------------+
	      |            |            |
	+-----+----+  +----+----+  +----+----+
	|   YAML   |  |   HCL   |  |  JSON   |
	|  Parser  |  | Parser  |  | Parser  |
	+----------+  +---------+  +---------+

🎯 Purpose:
- Reads gcp_settings and translation_config
- Validates the translation type and fills defaults
- Loads the processor pipeline file and builds its processors

🔄 Flow:
1. Picks a parser by file extension
2. Decodes with unknown fields rejected
3. Validates, applying defaults (location "us", clean_up_tmp_files true)

Every validation failure wraps ErrInvalidConfig.

🔍 Example:

	cfg, err := config.Load(ctx, "config.yaml")
	if errors.Is(err, config.ErrInvalidConfig) {
		// bad settings, nothing has been touched yet
	}

	pipe, err := config.LoadPipeline(ctx, "pipeline.yaml")
	procs, err := pipe.Build(ctx)

HCL files may reference environment variables:

	gcp_settings {
	  project_number = env.GCP_PROJECT_NUMBER
	  gcs_bucket     = "my-bucket"
	}
	translation_config {
	  translation_type = "Translation_Teradata2BQ"
	}
*/
package config
