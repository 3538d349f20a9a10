package integrations

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
)

func init() {
	core.Register(&core.NodeType{
		Identifier:  "integration.awsS3",
		DisplayName: "AWS S3",
		Group:       []string{"integration"},
		Version:     1,
		Inputs:      []string{"main"},
		Outputs:     []string{"main"},
		Properties: []core.NodeProperty{
			{Name: "operation", DisplayName: "Operation", Kind: core.KindOptions, Default: "list",
				Options: []interface{}{"list", "get", "put", "delete", "copy", "getSignedUrl", "listBuckets"}},
			{Name: "bucket", DisplayName: "Bucket", Kind: core.KindString},
			{Name: "key", DisplayName: "Key", Kind: core.KindString},
			{Name: "prefix", DisplayName: "Prefix", Kind: core.KindString},
			{Name: "content", DisplayName: "Content", Kind: core.KindString},
			{Name: "contentType", DisplayName: "Content Type", Kind: core.KindString},
			{Name: "isBase64", DisplayName: "Content is Base64", Kind: core.KindBoolean},
			{Name: "sourceBucket", DisplayName: "Source Bucket", Kind: core.KindString},
			{Name: "sourceKey", DisplayName: "Source Key", Kind: core.KindString},
			{Name: "destBucket", DisplayName: "Destination Bucket", Kind: core.KindString},
			{Name: "destKey", DisplayName: "Destination Key", Kind: core.KindString},
			{Name: "expiration", DisplayName: "Signed URL Expiration (s)", Kind: core.KindNumber, Default: 3600},
		},
		Credentials: []core.CredentialDefinition{{Type: "aws", Required: true}},
		Node:        &AWSS3Node{},
	})
}

// AWSS3Node performs one S3 operation per invocation, built fresh against
// the "aws" credential's access key pair each time rather than holding a
// pooled client across executions.
type AWSS3Node struct{}

func (n *AWSS3Node) Execute(ctx context.Context, execCtx *core.ExecutionContext) (core.PortData, error) {
	p := execCtx.Parameters
	client, err := n.createClient(ctx, execCtx.Credentials["aws"])
	if err != nil {
		return nil, fmt.Errorf("integration.awsS3: failed to create client: %w", err)
	}

	items := execCtx.InputData["main"]
	var input map[string]interface{}
	if len(items) > 0 {
		input = items[0].JSON
	}

	var result map[string]interface{}
	switch getStr(p, "operation", "list") {
	case "get":
		result, err = n.getObject(ctx, client, p)
	case "put":
		result, err = n.putObject(ctx, client, p, input)
	case "delete":
		result, err = n.deleteObject(ctx, client, p)
	case "copy":
		result, err = n.copyObject(ctx, client, p)
	case "getSignedUrl":
		result, err = n.getSignedURL(ctx, client, p)
	case "listBuckets":
		result, err = n.listBuckets(ctx, client)
	default:
		result, err = n.listObjects(ctx, client, p)
	}
	if err != nil {
		return nil, fmt.Errorf("integration.awsS3: %w", err)
	}
	return core.PortData{"main": core.Items{{JSON: result}}}, nil
}

func (n *AWSS3Node) createClient(ctx context.Context, cred map[string]interface{}) (*s3.Client, error) {
	region := getStr(cred, "region", "us-east-1")
	accessKeyID := getStr(cred, "accessKeyId", "")
	secretAccessKey := getStr(cred, "secretAccessKey", "")
	endpoint := getStr(cred, "endpoint", "")

	var cfg aws.Config
	var err error
	if accessKeyID != "" && secretAccessKey != "" {
		cfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, "")),
		)
	} else {
		cfg, err = config.LoadDefaultConfig(ctx, config.WithRegion(region))
	}
	if err != nil {
		return nil, err
	}

	var opts []func(*s3.Options)
	if endpoint != "" {
		opts = append(opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(cfg, opts...), nil
}

func (n *AWSS3Node) listObjects(ctx context.Context, client *s3.Client, p map[string]interface{}) (map[string]interface{}, error) {
	bucket := getStr(p, "bucket", "")
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	prefix := getStr(p, "prefix", "")
	maxKeys := int32(getInt(p, "maxKeys", 1000))

	input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket), MaxKeys: aws.Int32(maxKeys)}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	result, err := client.ListObjectsV2(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("list failed: %w", err)
	}

	objects := make([]map[string]interface{}, 0, len(result.Contents))
	for _, obj := range result.Contents {
		objects = append(objects, map[string]interface{}{
			"key": aws.ToString(obj.Key), "size": obj.Size,
			"lastModified": obj.LastModified.Format(time.RFC3339),
			"etag":         strings.Trim(aws.ToString(obj.ETag), "\""),
			"storageClass": string(obj.StorageClass),
		})
	}
	return map[string]interface{}{
		"objects": objects, "count": len(objects),
		"isTruncated": aws.ToBool(result.IsTruncated), "bucket": bucket, "prefix": prefix,
	}, nil
}

func (n *AWSS3Node) getObject(ctx context.Context, client *s3.Client, p map[string]interface{}) (map[string]interface{}, error) {
	bucket, key := getStr(p, "bucket", ""), getStr(p, "key", "")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("bucket and key are required")
	}
	result, err := client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)})
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}
	defer result.Body.Close()
	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}

	content := string(data)
	isBase64 := false
	if !isValidUTF8(data) {
		content = base64.StdEncoding.EncodeToString(data)
		isBase64 = true
	}
	return map[string]interface{}{
		"content": content, "isBase64": isBase64, "size": len(data),
		"contentType":  aws.ToString(result.ContentType),
		"etag":         strings.Trim(aws.ToString(result.ETag), "\""),
		"lastModified": result.LastModified.Format(time.RFC3339),
		"bucket":       bucket, "key": key,
	}, nil
}

func (n *AWSS3Node) putObject(ctx context.Context, client *s3.Client, p map[string]interface{}, input map[string]interface{}) (map[string]interface{}, error) {
	bucket, key := getStr(p, "bucket", ""), getStr(p, "key", "")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("bucket and key are required")
	}

	content := getStr(p, "content", "")
	if content == "" && input != nil {
		if c, ok := input["content"].(string); ok {
			content = c
		} else if c, ok := input["data"].(string); ok {
			content = c
		}
	}

	contentType := getStr(p, "contentType", "")
	if contentType == "" {
		contentType = detectContentType(key)
	}

	var data []byte
	if b, _ := p["isBase64"].(bool); b {
		var err error
		data, err = base64.StdEncoding.DecodeString(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
	} else {
		data = []byte(content)
	}

	putInput := &s3.PutObjectInput{Bucket: aws.String(bucket), Key: aws.String(key), Body: bytes.NewReader(data)}
	if contentType != "" {
		putInput.ContentType = aws.String(contentType)
	}
	result, err := client.PutObject(ctx, putInput)
	if err != nil {
		return nil, fmt.Errorf("put failed: %w", err)
	}
	return map[string]interface{}{
		"uploaded": true, "bucket": bucket, "key": key, "size": len(data),
		"etag": strings.Trim(aws.ToString(result.ETag), "\""),
	}, nil
}

func (n *AWSS3Node) deleteObject(ctx context.Context, client *s3.Client, p map[string]interface{}) (map[string]interface{}, error) {
	bucket, key := getStr(p, "bucket", ""), getStr(p, "key", "")
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("bucket and key are required")
	}
	if _, err := client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)}); err != nil {
		return nil, fmt.Errorf("delete failed: %w", err)
	}
	return map[string]interface{}{"deleted": true, "bucket": bucket, "key": key}, nil
}

func (n *AWSS3Node) copyObject(ctx context.Context, client *s3.Client, p map[string]interface{}) (map[string]interface{}, error) {
	sourceBucket, sourceKey := getStr(p, "sourceBucket", ""), getStr(p, "sourceKey", "")
	destBucket, destKey := getStr(p, "destBucket", ""), getStr(p, "destKey", "")
	if sourceBucket == "" || sourceKey == "" {
		return nil, fmt.Errorf("sourceBucket and sourceKey are required")
	}
	if destBucket == "" {
		destBucket = sourceBucket
	}
	if destKey == "" {
		return nil, fmt.Errorf("destKey is required")
	}

	copySource := fmt.Sprintf("%s/%s", sourceBucket, sourceKey)
	result, err := client.CopyObject(ctx, &s3.CopyObjectInput{Bucket: aws.String(destBucket), Key: aws.String(destKey), CopySource: aws.String(copySource)})
	if err != nil {
		return nil, fmt.Errorf("copy failed: %w", err)
	}
	return map[string]interface{}{
		"copied": true, "sourceBucket": sourceBucket, "sourceKey": sourceKey,
		"destBucket": destBucket, "destKey": destKey,
		"etag": strings.Trim(aws.ToString(result.CopyObjectResult.ETag), "\""),
	}, nil
}

func (n *AWSS3Node) getSignedURL(ctx context.Context, client *s3.Client, p map[string]interface{}) (map[string]interface{}, error) {
	bucket, key := getStr(p, "bucket", ""), getStr(p, "key", "")
	expiration := getInt(p, "expiration", 3600)
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("bucket and key are required")
	}
	presignClient := s3.NewPresignClient(client)
	request, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(bucket), Key: aws.String(key)},
		func(opts *s3.PresignOptions) { opts.Expires = time.Duration(expiration) * time.Second })
	if err != nil {
		return nil, fmt.Errorf("presign failed: %w", err)
	}
	return map[string]interface{}{
		"url": request.URL, "bucket": bucket, "key": key, "expiration": expiration,
		"expiresAt": time.Now().Add(time.Duration(expiration) * time.Second).Format(time.RFC3339),
	}, nil
}

func (n *AWSS3Node) listBuckets(ctx context.Context, client *s3.Client) (map[string]interface{}, error) {
	result, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("list buckets failed: %w", err)
	}
	buckets := make([]map[string]interface{}, 0, len(result.Buckets))
	for _, b := range result.Buckets {
		buckets = append(buckets, map[string]interface{}{
			"name": aws.ToString(b.Name), "creationDate": b.CreationDate.Format(time.RFC3339),
		})
	}
	return map[string]interface{}{"buckets": buckets, "count": len(buckets)}, nil
}

func isValidUTF8(data []byte) bool {
	for i := 0; i < len(data); {
		switch {
		case data[i] < 0x80:
			i++
		case data[i]&0xE0 == 0xC0:
			if i+1 >= len(data) || data[i+1]&0xC0 != 0x80 {
				return false
			}
			i += 2
		case data[i]&0xF0 == 0xE0:
			if i+2 >= len(data) || data[i+1]&0xC0 != 0x80 || data[i+2]&0xC0 != 0x80 {
				return false
			}
			i += 3
		case data[i]&0xF8 == 0xF0:
			if i+3 >= len(data) || data[i+1]&0xC0 != 0x80 || data[i+2]&0xC0 != 0x80 || data[i+3]&0xC0 != 0x80 {
				return false
			}
			i += 4
		default:
			return false
		}
	}
	return true
}

func detectContentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".html", ".htm":
		return "text/html"
	case ".css":
		return "text/css"
	case ".js":
		return "application/javascript"
	case ".json":
		return "application/json"
	case ".xml":
		return "application/xml"
	case ".txt":
		return "text/plain"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".pdf":
		return "application/pdf"
	case ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
