// Package repository defines the persistence contracts of the engine.
//
// Services keep their working set in memory and call into these interfaces on
// every committed change; implementations live in the file (JSON document on
// disk) and postgres (lib/pq) subpackages.
package repository
