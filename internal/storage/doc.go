/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package storage persists lesson documents. Three backends share one contract: a JSON file
// store with transactional writes and timestamped backups, an embedded SQLite store with a
// full-text index, and a PostgreSQL store for the server deployment.
//
// A document without an ID is created and receives a fresh UUID; a document with an ID is
// updated in place. An empty title is persisted as domain.DefaultTitle.
package storage
