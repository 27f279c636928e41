// Package instance holds the workflow instance entity — one running
// execution of a definition, bound to one external work item — its
// append-only history, and the instance store contract.
//
// Instances carry a snapshot of the definition's stage graph taken at
// start time. Editing or deleting the definition afterwards never
// changes what an in-flight instance considers a legal transition.
package instance
