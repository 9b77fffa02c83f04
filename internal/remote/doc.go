// Package remote implements the remote build protocol client.
//
// A build is driven in three strictly ordered steps:
//
//  1. Submit uploads the compressed source archive and returns a Handle.
//  2. AwaitCompletion polls the build status until a terminal status is seen
//     or the build timeout elapses.
//  3. Retrieve downloads the artifact and the build log concurrently.
//
// When step 2 fails with a *BuildFailedError or *TimeoutError, Run fetches the
// build log alone and returns it inside a *DiagnosticError. No step is retried
// automatically; a resubmission always creates a new remote build.
//
// Time is read through an injected clockwork.Clock so the poll loop can be
// driven by a fake clock in tests.
package remote
