// Package testid holds the identity types shared by every layer of the
// runner: TestInstance (one test case) and TestList (the pre-filtered
// set of test instances the external discovery subsystem hands to the
// core). Nothing in this package depends on scheduling, profiles, or
// events, so it is safe for every other internal package to import.
package testid
