// Package analysis drives headless Ghidra imports, one project per family.
//
// A family's project marker (<out>/ghidra_projects/<family>.gpr) is the
// completion record: present means done. Families with no packed containers
// are skipped with a warning instead of launching the tool on an empty
// directory.
package analysis
