// Package cli implements the PassPort operator CLI.
//
// Secrets never leave the machine in plaintext. The breach lookup sends a
// five character SHA-1 prefix, and upload accepts sealed files only.
//
// Commands:
//
//	generate [-length n] [-no-upper] [-no-lower] [-no-digits] [-no-symbols] [-exclude-ambiguous]
//	analyze
//	breach
//	derive-key [-salt base64]
//	seal -salt base64 -in file -out file
//	open -salt base64 -in file -out file
//	upload -url presigned -in file
//	download -url presigned -out file
//
// Passwords are always read from the terminal without echo. With no command
// the CLI starts an interactive prompt accepting the same commands.
package cli
