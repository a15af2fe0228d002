// Package customcall declares runtime entry points ("custom calls") in a
// module and keeps exactly one declaration per target name.
//
// A declaration is a private function with no body carrying the attribute
// rt.custom_call = "<target>". The runtime resolves calls by that attribute,
// so the function symbol itself may be renamed when it collides with an
// existing symbol; callers always use the symbol returned by GetOrCreate.
//
// The table trusts the first registration: a second request for the same
// target returns the existing declaration no matter which types it passes.
// Callers must never register one target with two incompatible signatures.
package customcall
