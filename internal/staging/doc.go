// Package staging removes the temporary files that atomic writes leave behind
// when a run dies between creating and renaming them.
package staging
