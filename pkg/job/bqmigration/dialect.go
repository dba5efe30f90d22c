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

package bqmigration

import (
	"sort"
	"strings"

	"cloud.google.com/go/bigquery/migration/apiv2/migrationpb"
	"gitlab.com/tozd/go/errors"
	"google.golang.org/protobuf/encoding/protojson"
)

var dialects = map[string]func() *migrationpb.Dialect{
	"Translation_AzureSynapse2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_AzureSynapseDialect{AzureSynapseDialect: &migrationpb.AzureSynapseDialect{}}}
	},
	"Translation_Bteq2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_TeradataDialect{TeradataDialect: &migrationpb.TeradataDialect{Mode: migrationpb.TeradataDialect_BTEQ}}}
	},
	"Translation_HiveQL2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_HiveqlDialect{HiveqlDialect: &migrationpb.HiveQLDialect{}}}
	},
	"Translation_Netezza2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_NetezzaDialect{NetezzaDialect: &migrationpb.NetezzaDialect{}}}
	},
	"Translation_Oracle2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_OracleDialect{OracleDialect: &migrationpb.OracleDialect{}}}
	},
	"Translation_Redshift2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_RedshiftDialect{RedshiftDialect: &migrationpb.RedshiftDialect{}}}
	},
	"Translation_Snowflake2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_SnowflakeDialect{SnowflakeDialect: &migrationpb.SnowflakeDialect{}}}
	},
	"Translation_SparkSQL2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_SparksqlDialect{SparksqlDialect: &migrationpb.SparkSQLDialect{}}}
	},
	"Translation_SQLServer2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_SqlServerDialect{SqlServerDialect: &migrationpb.SQLServerDialect{}}}
	},
	"Translation_Teradata2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_TeradataDialect{TeradataDialect: &migrationpb.TeradataDialect{Mode: migrationpb.TeradataDialect_SQL}}}
	},
	"Translation_Vertica2BQ": func() *migrationpb.Dialect {
		return &migrationpb.Dialect{DialectValue: &migrationpb.Dialect_VerticaDialect{VerticaDialect: &migrationpb.VerticaDialect{}}}
	},
}

// TranslationTypes lists the supported translation types, sorted.
func TranslationTypes() []string {
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// SourceDialect returns the source dialect for a translation type.
func SourceDialect(translationType string) (*migrationpb.Dialect, error) {
	fn, ok := dialects[translationType]
	if !ok {
		return nil, errors.Errorf("unsupported translation type %q, options: %s", translationType, strings.Join(TranslationTypes(), ", "))
	}
	return fn(), nil
}

// 🗺️ LoadNameMapping validates object name mapping JSON and decodes it.
// Both `name_map` and `nameMap` spellings are accepted.
func LoadNameMapping(data []byte) (*migrationpb.ObjectNameMappingList, error) {
	list := &migrationpb.ObjectNameMappingList{}
	if err := protojson.Unmarshal(data, list); err != nil {
		return nil, errors.Errorf("parsing object name mapping: %w", err)
	}
	return list, nil
}
