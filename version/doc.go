// Package version reports the build version of the tablemut binary, for the
// -version flag and the /version route.
package version
