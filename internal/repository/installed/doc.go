// Package installed reads the version descriptor of the on-disk installation.
//
// The descriptor is the PHP configuration file the application itself
// maintains at application/config/version.php; only the versionnumber and
// buildnumber assignments are extracted, into a typed domain record.
package installed
