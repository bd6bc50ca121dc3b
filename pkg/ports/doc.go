// Package ports declares the interfaces between the script model and its
// external collaborators: record stores, the AI classifier, the equipment
// checker, and the service-call sink. Adapters live under internal/adapters;
// the contract test suites here keep every implementation honest.
package ports
