// Package cloud provides provisioning API implementations.
//
// Implementations:
//   - ec2: AWS EC2 (VPCs and subnets) via aws-sdk-go-v2
//   - memory: Scriptable fake for testing
package cloud
