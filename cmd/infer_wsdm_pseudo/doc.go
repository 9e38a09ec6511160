// Package main provides the program for running a fine-tuned sentence pair
// classifier over the dev set and writing its class probability table.
package main
