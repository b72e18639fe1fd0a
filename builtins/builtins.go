// Package builtins registers Achronyme's built-in function surface into
// registry.Default: every file in this package covers one concern (core
// higher-order functions, scalar math, complex arithmetic, vector/tensor
// numerics, strings, graphs) and self-registers via init(), mirroring the
// teacher's stdlib package's single-registration-point style split by
// concern rather than kept in one flat file.
//
// Importing this package (even with the blank identifier) is required
// before compiling or executing any module that calls one of these
// built-ins by name, since the compiler resolves CallBuiltin operands
// against registry.Default at compile time.
package builtins
