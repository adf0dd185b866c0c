// Command taiji runs the Tai Chi coaching server and its offline tools:
// calibration from the terminal, expert retargeting and catalog listing.
package main
