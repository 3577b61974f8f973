// =============================================================================
// 📦 测试数据 - 简历文档
// =============================================================================
// 检索缓存、路由与入口测试共用的示例简历
// =============================================================================
package fixtures

// Curriculum 是一份示例简历，段落之间以空行分隔
const Curriculum = `# Ana Souza

Senior software engineer based in Recife, Brazil.

## Languages

The candidate knows Go, Python and TypeScript. Go is the primary language for backend services.
She also writes SQL daily and has shipped Rust command line tools.

## Experience

Built data pipelines with Apache Kafka and Spark for a fintech, processing millions of events per day.
Led the migration of batch ETL jobs to streaming pipelines with exactly-once delivery.

## Education

BSc in Computer Science from the Federal University of Pernambuco.

## Interests

Open source maintenance, distributed systems reading groups and running.
`
