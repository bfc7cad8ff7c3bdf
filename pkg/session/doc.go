/*
Package session implements session access serialization.

The Manager owns a reference-counted table of per-session mutexes so that every
read-modify-write of a session (including a multi-step context recovery) runs
without interleaving. It can be combined with a distributed locker to extend the
guarantee across replicas sharing one session store.
*/
package session
