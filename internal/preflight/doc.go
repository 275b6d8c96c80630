// Package preflight provides readiness checks for the filesystem, external
// binaries, and the Bot API that stillframe depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll and CheckSystemDeps before it starts polling.
//     A failed check aborts startup rather than accepting uploads it cannot
//     render.
//   - The CLI "stillframe status" command uses the same functions plus
//     CheckTelegramFromConfig to display service health.
package preflight
