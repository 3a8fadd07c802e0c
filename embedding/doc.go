// Copyright 2025 Poiesic Systems
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


// Package embedding drives a project's chunks through an embedding service.
//
// The Driver walks the status store in index order and embeds one chunk at a
// time, waiting a fixed delay after each request to throttle the service.
// Each chunk moves Pending -> Embedding -> Success, or -> Failed with the
// service's message. Failures never stop a run and are never retried
// automatically.
//
// # Cancellation
//
// Stop asks the current run to end before its next dispatch. The request in
// flight completes normally and every chunk not yet started stays Pending.
// Cancelling the run's context also aborts the in-flight request, and that
// chunk returns to Pending. Stop only reaches a run that is active; RunUntil
// takes a caller-owned stop channel instead.
//
// # Basic Usage
//
//	store := status.NewStore(len(chunks))
//	driver := embedding.NewDriver(embedder, store)
//	report, err := driver.Run(ctx, chunks)
//	if err != nil {
//	    return err // misuse only: count mismatch or a run already active
//	}
//	fmt.Printf("%d embedded, %d failed\n", report.Succeeded, report.Failed)
package embedding
