// Package fixture implements the randomized delta-fixture generator.
//
// A Generator keeps a ground-truth model of a multicast source-address
// filter list and emits two synchronized streams: a command stream that
// drives the device under test and an oracle stream that states the
// expected source list after each command. Both streams are a pure
// function of the seed, the IP version, addrmax, numops and Settings.
package fixture
