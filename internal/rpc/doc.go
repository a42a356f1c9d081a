// Package rpc implements the Command Gateway's wire contract by hand:
// message types, a grpc.ServiceDesc per service, and a JSON codec
// registered as the "proto" codec so a plain grpc.Server/ClientConn
// works without protoc-generated descriptors. The authoritative
// contract is documented as IDL at proto/horology/v1/timer.proto;
// this package is its Go rendering.
package rpc
