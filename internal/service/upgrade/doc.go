// Package upgrade performs the scripted upgrade of an installation.
//
// One run resolves the target release against the configured channel and then
// drives a fixed sequence of steps: download and extract the archive, stop
// the web server, back up the database and application tree, swap the
// installation, restore user files, fix ownership and permissions, and start
// the web server again. The first failing step aborts the run; nothing is
// rolled back automatically, restoring from the backup set is an operator
// action.
package upgrade
